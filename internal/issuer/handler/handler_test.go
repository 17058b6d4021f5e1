package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	issuerservice "attest/internal/issuer/service"
	issuerstore "attest/internal/issuer/store"
	"attest/pkg/domain"
)

type IssuerHandlerSuite struct {
	suite.Suite
	router http.Handler
	ctx    context.Context

	owner domain.Address
}

func (s *IssuerHandlerSuite) SetupTest() {
	s.ctx = context.Background()
	s.owner = domain.Address{0xAA, 19: 0x01}

	registry, err := issuerservice.New(s.owner, issuerstore.NewInMemory())
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(registry, s.owner, logger)

	r := chi.NewRouter()
	h.Register(r, passThrough)
	s.router = r
}

func TestIssuerHandlerSuite(t *testing.T) {
	suite.Run(t, new(IssuerHandlerSuite))
}

func passThrough(next http.Handler) http.Handler { return next }

func (s *IssuerHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *IssuerHandlerSuite) registerIssuer(addr string) {
	w := s.do(http.MethodPost, "/api/issuers", map[string]string{
		"address":  addr,
		"name":     "Test University",
		"location": "Testville",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
}

const issuerHex = "0x1111111111111111111111111111111111111111"

func (s *IssuerHandlerSuite) TestRegister() {
	s.Run("registers and returns the issuer", func() {
		w := s.do(http.MethodPost, "/api/issuers", map[string]string{
			"address":  issuerHex,
			"name":     "MIT",
			"location": "Cambridge",
		})
		s.Require().Equal(http.StatusCreated, w.Code)

		var resp map[string]any
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.Equal(issuerHex, resp["address"])
		s.Equal(true, resp["active"])
	})

	s.Run("duplicate registration conflicts", func() {
		s.registerIssuer("0x2222222222222222222222222222222222222222")
		w := s.do(http.MethodPost, "/api/issuers", map[string]string{
			"address":  "0x2222222222222222222222222222222222222222",
			"name":     "Again",
			"location": "Elsewhere",
		})
		s.Equal(http.StatusConflict, w.Code)
	})

	s.Run("malformed address is a bad request", func() {
		w := s.do(http.MethodPost, "/api/issuers", map[string]string{
			"address":  "0x1234",
			"name":     "MIT",
			"location": "Cambridge",
		})
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("invalid body is a bad request", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/issuers", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *IssuerHandlerSuite) TestLifecycleRoutes() {
	s.Run("deactivate and reactivate round-trip", func() {
		s.registerIssuer(issuerHex)

		w := s.do(http.MethodPost, "/api/issuers/"+issuerHex+"/deactivate", nil)
		s.Require().Equal(http.StatusOK, w.Code)

		var resp map[string]any
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.Equal(false, resp["active"])

		w = s.do(http.MethodPost, "/api/issuers/"+issuerHex+"/deactivate", nil)
		s.Equal(http.StatusConflict, w.Code)

		w = s.do(http.MethodPost, "/api/issuers/"+issuerHex+"/reactivate", nil)
		s.Require().Equal(http.StatusOK, w.Code)
	})

	s.Run("unknown issuer is a 404", func() {
		w := s.do(http.MethodPost, "/api/issuers/0x9999999999999999999999999999999999999999/deactivate", nil)
		s.Equal(http.StatusNotFound, w.Code)
	})

	s.Run("update replaces name and location", func() {
		s.registerIssuer("0x3333333333333333333333333333333333333333")
		w := s.do(http.MethodPut, "/api/issuers/0x3333333333333333333333333333333333333333", map[string]string{
			"name":     "Renamed",
			"location": "Moved",
		})
		s.Require().Equal(http.StatusOK, w.Code)

		var resp map[string]any
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.Equal("Renamed", resp["name"])
	})
}

func (s *IssuerHandlerSuite) TestListRoutes() {
	s.Run("lists with pagination metadata", func() {
		s.registerIssuer("0x4444444444444444444444444444444444444444")
		s.registerIssuer("0x5555555555555555555555555555555555555555")

		w := s.do(http.MethodGet, "/api/issuers?start=0&limit=1", nil)
		s.Require().Equal(http.StatusOK, w.Code)

		var resp struct {
			Issuers []string `json:"issuers"`
			HasMore bool     `json:"has_more"`
		}
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.Len(resp.Issuers, 1)
		s.True(resp.HasMore)
	})

	s.Run("non-integer paging parameter is a bad request", func() {
		w := s.do(http.MethodGet, "/api/issuers?start=abc", nil)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("start past the end is a bad request", func() {
		s.registerIssuer("0x6666666666666666666666666666666666666666")
		w := s.do(http.MethodGet, "/api/issuers?start=50&limit=5", nil)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("active listing pairs addresses with names", func() {
		s.registerIssuer("0x7777777777777777777777777777777777777777")
		w := s.do(http.MethodGet, "/api/issuers/active", nil)
		s.Require().Equal(http.StatusOK, w.Code)

		var resp struct {
			Issuers []struct {
				Address string `json:"address"`
				Name    string `json:"name"`
			} `json:"issuers"`
		}
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.Require().NotEmpty(resp.Issuers)
		s.Equal("Test University", resp.Issuers[0].Name)
	})

	s.Run("status endpoint distinguishes known and active", func() {
		s.registerIssuer("0x8888888888888888888888888888888888888888")
		w := s.do(http.MethodPost, "/api/issuers/0x8888888888888888888888888888888888888888/deactivate", nil)
		s.Require().Equal(http.StatusOK, w.Code)

		w = s.do(http.MethodGet, "/api/issuers/0x8888888888888888888888888888888888888888/status", nil)
		s.Require().Equal(http.StatusOK, w.Code)

		var resp map[string]bool
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.True(resp["known"])
		s.False(resp["active"])

		w = s.do(http.MethodGet, "/api/issuers/0x9898989898989898989898989898989898989898/status", nil)
		s.Require().Equal(http.StatusOK, w.Code)
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.False(resp["known"])
	})

	s.Run("stats endpoint reports counters", func() {
		w := s.do(http.MethodGet, "/api/issuers/stats", nil)
		s.Require().Equal(http.StatusOK, w.Code)

		var resp struct {
			TotalIssuers uint64 `json:"total_issuers"`
		}
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	})
}
