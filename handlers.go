package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"pfin/models"
	"pfin/pkg/transaction"
)

var txEngine *transaction.Engine

func setupRoutes(r *gin.Engine, engine *transaction.Engine) {
	txEngine = engine
	r.POST("/auth/signup", signupHandler)
	r.POST("/auth/login", loginHandler)
	r.POST("/auth/refresh", refreshHandler)
	r.POST("/auth/revoke_refresh", revokeRefreshHandler)
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)
	authGroup.POST("/transactions", createTransactionHandler)
	authGroup.GET("/transactions", listTransactionsHandler)
	authGroup.GET("/transactions/overdue", overdueHandler)
	authGroup.GET("/transactions/upcoming-due", upcomingDueHandler)
	authGroup.GET("/transactions/summary", summaryHandler)
	authGroup.GET("/transactions/:id", getTransactionHandler)
	authGroup.PUT("/transactions/:id/status", updateStatusHandler)
	authGroup.PUT("/transactions/:id", updateTransactionHandler)
	authGroup.PATCH("/transactions/:id", updateTransactionHandler)
	authGroup.GET("/installments/:id", getInstallmentHandler)
	authGroup.GET("/installments/:id/installments", getInstallmentChildrenHandler)
	authGroup.GET("/stats", statsHandler)
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		c.Set("userId", sub)
		c.Next()
	}
}

func userIDFromContext(c *gin.Context) (string, bool) {
	v, _ := c.Get("userId")
	id, ok := v.(string)
	return id, ok && id != ""
}

func meHandler(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "context missing user id"})
		return
	}
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": user.ID, "name": user.Name, "email": user.Email})
}

// writeEngineError maps engine error kinds onto HTTP statuses: validation
// failures are 400, unknown/foreign ids are 404, everything else is a 500.
func writeEngineError(c *gin.Context, err error) {
	if transaction.IsValidation(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, transaction.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// parseDate accepts plain ISO dates and full RFC3339 timestamps.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func createTransactionHandler(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req struct {
		AmountInCents     int64  `json:"amountInCents" binding:"required"`
		Date              string `json:"date" binding:"required"`
		DueDate           string `json:"dueDate"`
		Description       string `json:"description" binding:"required"`
		Type              string `json:"type" binding:"required"`
		TotalInstallments *int   `json:"totalInstallments"`
		RecurrencePattern string `json:"recurrencePattern"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.AmountInCents < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amountInCents must be greater than 0"})
		return
	}
	txType, ok := transaction.ParseType(req.Type)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction type"})
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be ISO formatted (YYYY-MM-DD)"})
		return
	}
	create := transaction.CreateRequest{
		UserID:            userID,
		AmountInCents:     req.AmountInCents,
		Date:              date,
		Description:       req.Description,
		Type:              txType,
		TotalInstallments: req.TotalInstallments,
		RecurrencePattern: strings.ToLower(strings.TrimSpace(req.RecurrencePattern)),
	}
	if req.DueDate != "" {
		due, err := parseDate(req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dueDate must be ISO formatted (YYYY-MM-DD)"})
			return
		}
		create.DueDate = &due
	}
	tx, err := txEngine.Create(create)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func listTransactionsHandler(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var f transaction.Filter
	// type accepts a single value or a comma-separated list
	if raw := c.Query("type"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			t, ok := transaction.ParseType(part)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction type"})
				return
			}
			f.Types = append(f.Types, t)
		}
	}
	if raw := c.Query("status"); raw != "" {
		st, ok := transaction.ParseStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction status"})
			return
		}
		f.Status = &st
	}
	var err error
	if f.StartDate, err = optionalDate(c, "startDate"); err != nil {
		return
	}
	if f.EndDate, err = optionalDate(c, "endDate"); err != nil {
		return
	}
	if f.StartDueDate, err = optionalDate(c, "startDueDate"); err != nil {
		return
	}
	if f.EndDueDate, err = optionalDate(c, "endDueDate"); err != nil {
		return
	}
	txs, err := txEngine.List(userID, f)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

// optionalDate parses a date query param, writing the 400 itself on bad input.
func optionalDate(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := parseDate(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be ISO formatted (YYYY-MM-DD)"})
		return nil, err
	}
	return &t, nil
}

func getTransactionHandler(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	tx, err := txEngine.Get(c.Param("id"), userID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func updateStatusHandler(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req struct {
		Status       string `json:"status" binding:"required"`
		DateOccurred string `json:"dateOccurred"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, ok := transaction.ParseStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction status"})
		return
	}
	upd := transaction.StatusUpdate{Status: status}
	if req.DateOccurred != "" {
		occ, err := parseDate(req.DateOccurred)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dateOccurred must be ISO formatted (YYYY-MM-DD)"})
			return
		}
		upd.DateOccurred = &occ
	}
	tx, err := txEngine.UpdateStatus(c.Param("id"), userID, upd)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func updateTransactionHandler(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req struct {
		AmountInCents     *int64  `json:"amountInCents"`
		Date              *string `json:"date"`
		DueDate           *string `json:"dueDate"`
		Description       *string `json:"description"`
		Type              *string `json:"type"`
		Status            *string `json:"status"`
		DateOccurred      *string `json:"dateOccurred"`
		TotalInstallments *int    `json:"totalInstallments"`
		RecurrencePattern *string `json:"recurrencePattern"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.AmountInCents != nil && *req.AmountInCents < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amountInCents must be greater than 0"})
		return
	}
	upd := transaction.UpdateRequest{
		AmountInCents:     req.AmountInCents,
		Description:       req.Description,
		TotalInstallments: req.TotalInstallments,
	}
	if req.Type != nil {
		t, ok := transaction.ParseType(*req.Type)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction type"})
			return
		}
		upd.Type = &t
	}
	if req.Status != nil {
		st, ok := transaction.ParseStatus(*req.Status)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction status"})
			return
		}
		upd.Status = &st
	}
	if req.RecurrencePattern != nil {
		p := strings.ToLower(strings.TrimSpace(*req.RecurrencePattern))
		upd.RecurrencePattern = &p
	}
	for name, pair := range map[string]struct {
		raw *string
		dst **time.Time
	}{
		"date":         {req.Date, &upd.Date},
		"dueDate":      {req.DueDate, &upd.DueDate},
		"dateOccurred": {req.DateOccurred, &upd.DateOccurred},
	} {
		if pair.raw == nil {
			continue
		}
		t, err := parseDate(*pair.raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be ISO formatted (YYYY-MM-DD)"})
			return
		}
		*pair.dst = &t
	}
	tx, err := txEngine.Update(c.Param("id"), userID, upd)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func overdueHandler(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	txs, err := txEngine.Overdue(userID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

func upcomingDueHandler(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	daysAhead := 7
	if raw := c.Query("daysAhead"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			daysAhead = parsed
		}
	}
	txs, err := txEngine.UpcomingDue(userID, daysAhead)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

func summaryHandler(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	startDate, err := optionalDate(c, "startDate")
	if err != nil {
		return
	}
	endDate, err := optionalDate(c, "endDate")
	if err != nil {
		return
	}
	summary, err := txEngine.Summarize(userID, startDate, endDate)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func getInstallmentHandler(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	plan, err := txEngine.InstallmentPlan(c.Param("id"), userID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func getInstallmentChildrenHandler(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	// resolve the parent first so children of foreign ids stay hidden
	plan, err := txEngine.InstallmentPlan(c.Param("id"), userID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan.Children)
}

func statsHandler(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var users int64
	if err := db.Model(&models.User{}).Count(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	txCount, err := txEngine.CountForUser(userID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "transactions": txCount})
}

func signupHandler(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := RegisterUser(req.Name, req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "name": user.Name, "email": user.Email})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Authenticate(req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	tokenString, err := signAccessToken(user, 24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	refreshToken, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken})
}

func signAccessToken(user models.User, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"exp":   time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(jwtSecret)
}

// createAndStoreRefreshToken generates a random refresh token, stores its hash with expiry and returns the raw token string
func createAndStoreRefreshToken(userID string) (string, error) {
	// generate random 32-byte token (hex)
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	// hash for storage
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	rt := models.RefreshToken{UserID: userID, TokenHash: th, ExpiresAt: time.Now().Add(30 * 24 * time.Hour)}
	if err := db.Create(&rt).Error; err != nil {
		return "", err
	}
	return token, nil
}

// helper to find refresh token record by raw token string
func findRefreshTokenByRaw(token string) (*models.RefreshToken, error) {
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	var rt models.RefreshToken
	if err := db.Where("token_hash = ?", th).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// refreshHandler exchanges a refresh token for a new access token and rotates the refresh token
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	var user models.User
	if err := db.First(&user, "id = ?", rt.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	tokenString, err := signAccessToken(user, 15*time.Minute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// rotate refresh token: revoke existing and create new one
	db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true)
	newRT, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newRT})
}

// revokeRefreshHandler revokes a given refresh token (useful on logout)
func revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found"})
		return
	}
	rt.Revoked = true
	if err := db.Save(rt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}
