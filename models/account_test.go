package models

import (
	"context"
	"testing"

	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/utils"
)

func TestSessionTrustedWithoutRedis(t *testing.T) {
	if config.GetRedisDB() != nil {
		t.Skip("redis is connected")
	}
	if SessionRevoked("opaque-token") {
		t.Fatal("with no redis connection a parsed token must stay trusted")
	}
}

func TestLogoutRequiresSession(t *testing.T) {
	if err := Logout(context.Background()); err == nil {
		t.Fatal("logout without a bearer token must fail")
	}

	ctx := utils.SetTokenInContext(context.Background(), "tok")
	ctx = utils.SetAccountIdInContext(ctx, 7)
	if err := Logout(ctx); err != nil {
		t.Fatalf("logout with a session in context: %v", err)
	}
}
