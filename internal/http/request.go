package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	applog "finwise/internal/log"
)

const maxJSONBody = 1 << 20

type ctxKey int

const userKey ctxKey = iota

var errMissingUser = errors.New("missing " + UserHeader + " header")

// withUser resolves the caller identity and attaches it to the request
// context and logger.
func (s *Server) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := sanitizeInput(r.Header.Get(UserHeader))
		if user == "" {
			user = s.defaultUser
		}
		if user == "" {
			writeError(w, http.StatusUnauthorized, errMissingUser.Error())
			return
		}
		if len(user) > 128 {
			writeError(w, http.StatusBadRequest, "user id too long")
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		logger := applog.FromContext(ctx).With(applog.FieldUserID, user)
		ctx = applog.NewContext(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(ctx context.Context) string {
	user, _ := ctx.Value(userKey).(string)
	return user
}

func userFromRequest(r *http.Request) string {
	return userID(r.Context())
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
