package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"temporada/internal/auth"
	applog "temporada/internal/log"
	"temporada/internal/middleware/trace"
)

type loginData struct {
	Username string
	Next     string
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, loginPath) {
		return "/"
	}
	return next
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.auth.Session(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", page{
		Title: "Entrar",
		Data:  loginData{Next: safeNext(r.URL.Query().Get("next"))},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		parseError(err).Write(w)
		return
	}
	username := p.Get("username")
	data := loginData{Username: username, Next: safeNext(p.Get("next"))}
	logger := applog.FromContext(r.Context())

	ip := trace.ClientIP(r)
	if !s.loginLimiter.Allow(ip) {
		retry := s.loginLimiter.RetryAfter(ip)
		logger.WarnContext(r.Context(), "Login throttled", applog.FieldClientIP, ip)
		w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
		s.render(w, r, http.StatusTooManyRequests, "login.html", page{
			Title: "Entrar",
			Error: "Muitas tentativas. Aguarde alguns minutos e tente novamente.",
			Data:  data,
		})
		return
	}

	// Form values are not trimmed for the password.
	password := p.GetText("password")
	if err := s.auth.Login(w, username, password); err != nil {
		status := http.StatusUnauthorized
		msg := "Usuário ou senha inválidos."
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			status = http.StatusInternalServerError
			msg = "Erro interno. Tente novamente."
			logger.LogError(r.Context(), "Login failed", err, applog.OpLogin)
		} else {
			logger.WarnContext(r.Context(), "Invalid login",
				applog.FieldUser, username,
				applog.FieldClientIP, ip)
		}
		s.render(w, r, status, "login.html", page{Title: "Entrar", Error: msg, Data: data})
		return
	}

	s.loginLimiter.Reset(ip)
	logger.InfoContext(r.Context(), "Operator logged in",
		applog.FieldUser, username,
		applog.FieldClientIP, ip)
	http.Redirect(w, r, data.Next, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(w)
	if isHTMX(r) {
		NewHTMXResponse().Redirect(loginPath).Write(w)
		return
	}
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}
