package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/utils"
)

type loginRequest struct {
	Username string `json:"username"`
	PIN      string `json:"pin"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// login exchanges an operator PIN for a session token
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Username == "" || body.PIN == "" {
		respondError(w, http.StatusBadRequest, "Username and PIN are required")
		return
	}

	var user models.User
	err := r.Store.DB().WithContext(req.Context()).
		Where("username = ? AND active = ?", body.Username, true).
		First(&user).Error
	if err != nil || !utils.CheckPINHash(body.PIN, user.PinHash) {
		r.Log.WithField("username", body.Username).Warn("Failed operator login")
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := utils.GenerateOperatorToken(&user, r.JWTSecret, 0)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{Token: token, User: &user})
}
