package session

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"searchlens/internal/domain"
)

func TestAuthTokenFormat(t *testing.T) {
	token := AuthToken("secret-cookie", 1700000000, "https://search.google.com")

	if !strings.HasPrefix(token, "SAPISIDHASH 1700000000_") {
		t.Fatalf("token = %q, want SAPISIDHASH <ts>_<digest> form", token)
	}
	sum := sha1.Sum([]byte("1700000000 secret-cookie https://search.google.com"))
	want := "SAPISIDHASH 1700000000_" + hex.EncodeToString(sum[:])
	if token != want {
		t.Fatalf("token = %q, want %q", token, want)
	}
}

func TestAuthTokenDeterministicWithinSecond(t *testing.T) {
	a := AuthToken("s", 1700000000, "https://search.google.com")
	b := AuthToken("s", 1700000000, "https://search.google.com")
	if a != b {
		t.Fatalf("same inputs gave different tokens: %q vs %q", a, b)
	}
}

func TestAuthTokenVariesPerInput(t *testing.T) {
	base := AuthToken("s", 1700000000, "https://search.google.com")
	variants := []string{
		AuthToken("s2", 1700000000, "https://search.google.com"),
		AuthToken("s", 1700000001, "https://search.google.com"),
		AuthToken("s", 1700000000, "https://example.com"),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d matched the base token", i)
		}
	}
}

func TestSessionSecretPreference(t *testing.T) {
	cookies := map[string]domain.CookieRecord{
		"SAPISID":           {Name: "SAPISID", Value: "first-party"},
		"__Secure-3PAPISID": {Name: "__Secure-3PAPISID", Value: "third-party"},
		"__Secure-1PAPISID": {Name: "__Secure-1PAPISID", Value: "partitioned"},
	}
	got, err := SessionSecret(cookies)
	if err != nil {
		t.Fatal(err)
	}
	if got != "first-party" {
		t.Fatalf("secret = %q, want the SAPISID value", got)
	}

	delete(cookies, "SAPISID")
	got, err = SessionSecret(cookies)
	if err != nil {
		t.Fatal(err)
	}
	if got != "third-party" {
		t.Fatalf("secret = %q, want the __Secure-3PAPISID value", got)
	}
}

func TestSessionSecretMissing(t *testing.T) {
	_, err := SessionSecret(map[string]domain.CookieRecord{
		"SID": {Name: "SID", Value: "x"},
	})
	if err == nil {
		t.Fatal("want error when no secret cookie is present")
	}
	if domain.KindOf(err) != domain.IncompleteSession {
		t.Fatalf("kind = %q, want %q", domain.KindOf(err), domain.IncompleteSession)
	}
}

func TestCookieHeaderDeterministic(t *testing.T) {
	cookies := map[string]domain.CookieRecord{
		"SAPISID":  {Name: "SAPISID", Value: "a"},
		"SID":      {Name: "SID", Value: "b"},
		"HSID":     {Name: "HSID", Value: "c"},
		"NOTKNOWN": {Name: "NOTKNOWN", Value: "d"},
	}
	got := CookieHeader(cookies)
	want := "HSID=c; SAPISID=a; SID=b"
	if got != want {
		t.Fatalf("header = %q, want %q", got, want)
	}
	for i := 0; i < 20; i++ {
		if again := CookieHeader(cookies); again != got {
			t.Fatalf("header order changed between calls: %q vs %q", again, got)
		}
	}
}

func TestCookieHeaderSecureVariants(t *testing.T) {
	cookies := map[string]domain.CookieRecord{
		"__Secure-3PAPISID": {Name: "__Secure-3PAPISID", Value: "x"},
		"SID":               {Name: "SID", Value: "y"},
	}
	got := CookieHeader(cookies)
	if !strings.Contains(got, "__Secure-3PAPISID=x") {
		t.Fatalf("header %q should forward __Secure-3PAPISID", got)
	}
}

func ExampleAuthToken() {
	fmt.Println(AuthToken("example", 1700000000, "https://search.google.com")[:23])
	// Output: SAPISIDHASH 1700000000_
}
