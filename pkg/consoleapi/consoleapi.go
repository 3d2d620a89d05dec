// Package consoleapi wires the RBUM/IAM kernel packages (rbum, credential,
// session, oauth2, resource, spi) onto the five console HTTP scopes:
// system, tenant, app, passport, and interface. Each scope gets its own
// Handler (audit writer + services, a Register method that adds routes to
// a chi.Router, and one handleXxx method per endpoint).
package consoleapi

import (
	"log/slog"

	"github.com/grayforge/keyward/internal/audit"
	"github.com/grayforge/keyward/internal/httpserver"
	"github.com/grayforge/keyward/pkg/cache"
	"github.com/grayforge/keyward/pkg/credential"
	"github.com/grayforge/keyward/pkg/gateway"
	"github.com/grayforge/keyward/pkg/oauth2"
	"github.com/grayforge/keyward/pkg/rbum"
	"github.com/grayforge/keyward/pkg/resource"
	"github.com/grayforge/keyward/pkg/session"
)

// Deps bundles every service pkg/consoleapi's handlers are built from. One
// Deps is constructed per process by internal/app and shared across scopes.
type Deps struct {
	Logger     *slog.Logger
	Audit      *audit.Writer
	Store      *rbum.Store
	Credential *credential.Service
	Sessions   *session.Service
	OAuth2     *oauth2.Service
	Resource   *resource.Evaluator
	Trie       *resource.Trie
	Cache      *cache.Cache
	Gateway    *gateway.Pipeline

	TokenHeader string // e.g. Bios-Token, the bearer header RequireToken reads
	AppHeader   string // e.g. Bios-App

	SPIManagementMode   bool   // this node is allowed to create isolation schemas
	MigrationsTenantDir string // directory golang-migrate applies against a provisioned tenant schema
}

// Mount builds every scope's Handler and registers its routes onto the
// matching sub-router of s.
func Mount(s *httpserver.Server, d Deps) {
	requireToken := httpserver.RequireToken(d.Sessions, d.TokenHeader, d.AppHeader)

	NewPassportHandler(d).Register(s.CP, requireToken)
	NewSystemHandler(d).Register(s.CS, requireToken)
	NewTenantHandler(d).Register(s.CT, requireToken)
	NewAppHandler(d).Register(s.CA, requireToken)
	NewInterfaceHandler(d).Register(s.CI)
	NewOAuth2Handler(d).Register(s.OAuth2)

	if d.Gateway != nil {
		NewGatewayHandler(d.Gateway).Register(s.CI)
	}
}
