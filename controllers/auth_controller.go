package controllers

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/chainshop/chainshop-api/config"
	"github.com/chainshop/chainshop-api/middleware"
	"github.com/chainshop/chainshop-api/models"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[A-Za-z]{2,}$`)

const minPasswordLength = 8

// AuthController handles registration and login for all three roles.
type AuthController struct {
	db  *gorm.DB
	cfg *config.Config
}

// NewAuthController wires the controller's dependencies.
func NewAuthController(db *gorm.DB, cfg *config.Config) *AuthController {
	return &AuthController{db: db, cfg: cfg}
}

type registerRequest struct {
	Forename string `json:"forename"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterCustomer handles POST /register_customer
func (a *AuthController) RegisterCustomer(c *gin.Context) {
	a.registerUser(c, models.RoleCustomer)
}

// RegisterCourier handles POST /register_courier
func (a *AuthController) RegisterCourier(c *gin.Context) {
	a.registerUser(c, models.RoleCourier)
}

// registerUser holds the registration logic shared by customers and couriers.
func (a *AuthController) registerUser(c *gin.Context, role string) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Field forename is missing.")
		return
	}

	if req.Forename == "" {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Field forename is missing.")
		return
	}
	if req.Surname == "" {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Field surname is missing.")
		return
	}
	if req.Email == "" {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Field email is missing.")
		return
	}
	if req.Password == "" {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Field password is missing.")
		return
	}
	if !emailPattern.MatchString(req.Email) {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid email.")
		return
	}
	if len(req.Password) < minPasswordLength {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid password.")
		return
	}

	var existing models.User
	err := a.db.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Email already exists.")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondMessage(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to check existing users.")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondMessage(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to hash password.")
		return
	}

	user := models.User{
		Email:    req.Email,
		Password: string(hash),
		Forename: req.Forename,
		Surname:  req.Surname,
		Role:     role,
	}
	if err := a.db.Create(&user).Error; err != nil {
		respondMessage(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create user.")
		return
	}

	respondOK(c, nil)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /login and returns an access token on success.
func (a *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Field email is missing.")
		return
	}

	if req.Email == "" {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Field email is missing.")
		return
	}
	if req.Password == "" {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Field password is missing.")
		return
	}
	if !emailPattern.MatchString(req.Email) {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid email.")
		return
	}

	var user models.User
	if err := a.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid credentials.")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid credentials.")
		return
	}

	token, err := middleware.IssueToken(a.cfg, user.Email, user.Role)
	if err != nil {
		respondMessage(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token.")
		return
	}

	respondOK(c, gin.H{"accessToken": token})
}
