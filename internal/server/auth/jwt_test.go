package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/akarpovs/cryptodrive/internal/common"
	"github.com/akarpovs/cryptodrive/internal/server/models"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	user := &models.User{ID: "user-123", Username: "alice", IsSuperuser: true}

	tok, err := GenerateToken(user, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	actor, err := ActorFromToken(tok, secret)
	if err != nil {
		t.Fatalf("ActorFromToken error: %v", err)
	}
	if actor.ID != user.ID {
		t.Fatalf("ID mismatch: got %q want %q", actor.ID, user.ID)
	}
	if actor.Username != "alice" || !actor.IsSuperuser {
		t.Fatalf("claims lost: %+v", actor)
	}
}

func TestActorFromToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	user := &models.User{ID: "u1", Username: "bob"}

	tok, err := GenerateToken(user, secret, -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = ActorFromToken(tok, secret)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestActorFromToken_WrongSecret(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: "u2", Username: "carol"}
	tok, err := GenerateToken(user, []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = ActorFromToken(tok, []byte("wrong-secret"))
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestActorFromToken_MalformedString(t *testing.T) {
	t.Parallel()

	_, err := ActorFromToken("not.a.jwt", []byte("k"))
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}
