package mockapi

import (
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userJSON(a *account) map[string]any {
	return map[string]any{"id": a.ID, "name": a.Name, "email": a.Email, "phone": a.Phone}
}

func (s *Server) issueFor(w http.ResponseWriter, status int, a *account) {
	token, jti, err := s.tokens.Issue(strconv.Itoa(a.ID))
	if err != nil {
		s.logger.Error("failed to issue token", "user_id", a.ID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Erro interno.")
		return
	}
	s.mu.Lock()
	s.issued[a.ID] = append(s.issued[a.ID], jti)
	s.mu.Unlock()
	writeJSON(w, status, map[string]any{
		"user":         userJSON(a),
		"access_token": token,
		"token_type":   "Bearer",
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requisição inválida.")
		return
	}

	s.mu.Lock()
	var acct *account
	if id, ok := s.emails[normalizeEmail(req.Email)]; ok {
		acct = s.accounts[id]
	}
	s.mu.Unlock()

	if acct == nil || bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(req.Password)) != nil {
		writeMessage(w, http.StatusUnauthorized, "E-mail ou senha inválidos.")
		return
	}
	s.issueFor(w, http.StatusOK, acct)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name                 string `json:"name"`
		Email                string `json:"email"`
		Password             string `json:"password"`
		PasswordConfirmation string `json:"password_confirmation"`
		Phone                string `json:"phone"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requisição inválida.")
		return
	}

	fields := map[string][]string{}
	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = append(fields["name"], "O campo nome é obrigatório.")
	}
	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = append(fields["email"], "Informe um e-mail válido.")
	}
	if len(req.Password) < minPasswordLength {
		fields["password"] = append(fields["password"], "A senha deve ter pelo menos 8 caracteres.")
	}
	if req.Password != req.PasswordConfirmation {
		fields["password"] = append(fields["password"], "A confirmação da senha não confere.")
	}

	s.mu.Lock()
	if _, taken := s.emails[email]; taken && email != "" {
		fields["email"] = append(fields["email"], "Este e-mail já está em uso.")
	}
	var (
		acct *account
		err  error
	)
	if len(fields) == 0 {
		acct, err = s.createAccountLocked(strings.TrimSpace(req.Name), email, req.Phone, req.Password)
	}
	s.mu.Unlock()

	switch {
	case len(fields) > 0:
		writeValidation(w, fields)
	case err != nil:
		s.logger.Error("failed to create account", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Erro interno.")
	default:
		s.issueFor(w, http.StatusCreated, acct)
	}
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.currentAccount(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requisição inválida.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if email := normalizeEmail(req.Email); email != "" && email != acct.Email {
		if !strings.Contains(email, "@") {
			writeValidation(w, map[string][]string{"email": {"Informe um e-mail válido."}})
			return
		}
		if _, taken := s.emails[email]; taken {
			writeValidation(w, map[string][]string{"email": {"Este e-mail já está em uso."}})
			return
		}
		delete(s.emails, acct.Email)
		acct.Email = email
		s.emails[email] = acct.ID
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		acct.Name = name
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		acct.Phone = phone
	}
	writeJSON(w, http.StatusOK, userJSON(acct))
}
