package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestGetServiceErrorThroughWrapping(t *testing.T) {
	base := Conflict("この商品コードは既に使用されています", stderrors.New("23505"))
	wrapped := fmt.Errorf("create product: %w", base)

	got := GetServiceError(wrapped)
	if got == nil {
		t.Fatalf("expected service error in chain")
	}
	if got.HTTPStatus != http.StatusConflict {
		t.Fatalf("status = %d, want 409", got.HTTPStatus)
	}
	if !IsCode(wrapped, CodeConflict) {
		t.Fatalf("expected conflict code")
	}
}

func TestFieldErrors(t *testing.T) {
	err := fmt.Errorf("submit: %w", Validation(map[string]string{"dealer_name": "必須項目です"}))
	fields := FieldErrors(err)
	if fields["dealer_name"] != "必須項目です" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if FieldErrors(Internal("boom", nil)) != nil {
		t.Fatalf("non-validation error must not carry fields")
	}
}

func TestAuthFailedAppendsProviderMessage(t *testing.T) {
	err := AuthFailed("INVALID_PASSWORD", nil)
	if err.Message != "ログインに失敗しました: INVALID_PASSWORD" {
		t.Fatalf("message = %q", err.Message)
	}
}
