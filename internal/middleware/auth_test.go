package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/localmind/backend/internal/auth"
	"github.com/localmind/backend/internal/util"
	"github.com/stretchr/testify/suite"
)

type AuthMiddlewareTestSuite struct {
	suite.Suite
	verifier *auth.MockVerifier
	router   *gin.Engine
}

func (s *AuthMiddlewareTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.verifier = auth.NewMockVerifier()
	s.verifier.AddToken("good-token", "alice")

	s.router = gin.New()
	s.router.GET("/me", AuthMiddleware(s.verifier), func(c *gin.Context) {
		identity, ok := util.GetIdentityFromContext(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"uid": identity.UID, "user_id": c.GetString(util.ContextUserID)})
	})
}

func (s *AuthMiddlewareTestSuite) do(header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *AuthMiddlewareTestSuite) TestValidToken() {
	w := s.do("Bearer good-token")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"uid":"alice","user_id":"alice"}`, w.Body.String())
}

func (s *AuthMiddlewareTestSuite) TestSchemeIsCaseInsensitive() {
	s.Equal(http.StatusOK, s.do("bearer good-token").Code)
}

func (s *AuthMiddlewareTestSuite) TestMissingHeader() {
	w := s.do("")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Contains(w.Body.String(), `"error":"Unauthorized: No token provided"`)
	s.Empty(s.verifier.Calls)
}

func (s *AuthMiddlewareTestSuite) TestMalformedHeader() {
	for _, header := range []string{"good-token", "Basic abc", "Bearer ", "Bearer"} {
		w := s.do(header)
		s.Equal(http.StatusUnauthorized, w.Code, header)
	}
	s.Empty(s.verifier.Calls)
}

func (s *AuthMiddlewareTestSuite) TestInvalidToken() {
	w := s.do("Bearer forged")
	s.Equal(http.StatusForbidden, w.Code)
	s.Contains(w.Body.String(), `"error":"Unauthorized: Invalid token"`)
}

func TestAuthMiddlewareTestSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareTestSuite))
}
