package security

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gov-dx-sandbox/attribute-forms/internal/config"
)

func TestTokenService(t *testing.T) {
	svc := NewTokenService("secret-1", time.Hour)

	token, err := svc.Generate("attribute_form_afi_1")
	require.NoError(t, err)
	assert.NoError(t, svc.Validate(token, "attribute_form_afi_1"))

	t.Run("wrong scope", func(t *testing.T) {
		assert.ErrorIs(t, svc.Validate(token, "attribute_form_afi_2"), ErrScopeMismatch)
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.Error(t, NewTokenService("secret-2", time.Hour).Validate(token, "attribute_form_afi_1"))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Error(t, svc.Validate("", "attribute_form_afi_1"))
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenService("secret-1", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		assert.ErrorIs(t, later.Validate(token, "attribute_form_afi_1"), jwt.ErrTokenExpired)
	})

	t.Run("unsigned token rejected", func(t *testing.T) {
		claims := ScopeClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    tokenIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Scope: "attribute_form_afi_1",
		}
		none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		assert.Error(t, svc.Validate(none, "attribute_form_afi_1"))
	})
}

func TestCIDRBanList(t *testing.T) {
	l, err := NewCIDRBanList([]string{"203.0.113.7", " 198.51.100.0/24 ", "", "2001:db8::/32"})
	require.NoError(t, err)

	tests := []struct {
		ip     string
		banned bool
	}{
		{"203.0.113.7", true},
		{"203.0.113.8", false},
		{"198.51.100.200", true},
		{"::ffff:198.51.100.1", true},
		{"2001:db8::1", true},
		{"2001:db9::1", false},
		{"not-an-ip", false},
	}
	for _, tt := range tests {
		banned, err := l.IsBanned(context.Background(), tt.ip)
		require.NoError(t, err)
		assert.Equal(t, tt.banned, banned, tt.ip)
	}

	_, err = NewCIDRBanList([]string{"10.0.0.0/99"})
	assert.Error(t, err)
	_, err = NewCIDRBanList([]string{"banana"})
	assert.Error(t, err)
}

type fakeSet struct {
	members map[string]bool
	err     error
}

func (f *fakeSet) SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd {
	return redis.NewBoolResult(f.members[member.(string)], f.err)
}

func (f *fakeSet) SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	for _, m := range members {
		f.members[m.(string)] = true
	}
	return redis.NewIntResult(int64(len(members)), f.err)
}

func (f *fakeSet) SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	for _, m := range members {
		delete(f.members, m.(string))
	}
	return redis.NewIntResult(int64(len(members)), f.err)
}

func TestRedisBanList(t *testing.T) {
	ctx := context.Background()
	set := &fakeSet{members: map[string]bool{}}
	l := NewRedisBanList(set, "attribute-forms:banned-ips")

	banned, err := l.IsBanned(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, banned)

	require.NoError(t, l.Ban(ctx, "192.0.2.1"))
	banned, err = l.IsBanned(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.True(t, banned)

	require.NoError(t, l.Unban(ctx, "192.0.2.1"))
	banned, _ = l.IsBanned(ctx, "192.0.2.1")
	assert.False(t, banned)

	set.err = errors.New("connection refused")
	_, err = l.IsBanned(ctx, "192.0.2.1")
	assert.Error(t, err)
}

func TestCompositeBanList(t *testing.T) {
	static, err := NewCIDRBanList([]string{"192.0.2.9"})
	require.NoError(t, err)
	broken := NewRedisBanList(&fakeSet{members: map[string]bool{}, err: errors.New("down")}, "k")

	c := CompositeBanList{broken, static}
	banned, err := c.IsBanned(context.Background(), "192.0.2.9")
	require.NoError(t, err)
	assert.True(t, banned)

	banned, err = c.IsBanned(context.Background(), "192.0.2.10")
	assert.Error(t, err)
	assert.False(t, banned)
}

func TestHTTPCaptchaVerifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "captcha-secret", r.PostForm.Get("secret"))
		assert.Equal(t, "192.0.2.1", r.PostForm.Get("remoteip"))
		switch r.PostForm.Get("response") {
		case "good":
			_, _ = w.Write([]byte(`{"success":true}`))
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
		}
	}))
	defer server.Close()

	v := NewHTTPCaptchaVerifier(config.CaptchaConfig{VerifyURL: server.URL, Secret: "captcha-secret"})
	ctx := context.Background()

	assert.NoError(t, v.Verify(ctx, "good", "192.0.2.1"))
	assert.ErrorIs(t, v.Verify(ctx, "bad", "192.0.2.1"), ErrCaptchaFailed)
	assert.ErrorIs(t, v.Verify(ctx, "  ", "192.0.2.1"), ErrCaptchaFailed)

	err := v.Verify(ctx, "broken", "192.0.2.1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCaptchaFailed)
}

func TestNewCaptchaVerifier(t *testing.T) {
	v := NewCaptchaVerifier(config.CaptchaConfig{})
	assert.IsType(t, NonEmptyCaptcha{}, v)
	assert.NoError(t, v.Verify(context.Background(), "abc", ""))
	assert.ErrorIs(t, v.Verify(context.Background(), "", ""), ErrCaptchaFailed)

	assert.IsType(t, &HTTPCaptchaVerifier{}, NewCaptchaVerifier(config.CaptchaConfig{VerifyURL: "https://captcha.test/verify"}))
}

func TestRuleSpamClassifier(t *testing.T) {
	c := NewRuleSpamClassifier(config.SpamConfig{MaxLinks: 2, BlockedWords: []string{" Casino ", ""}})
	ctx := context.Background()

	tests := []struct {
		name    string
		content string
		spam    bool
	}{
		{"plain", "Hello, I would like a quote.", false},
		{"two links", "see https://a.test and www.b.test", false},
		{"three links", "http://a.test http://b.test https://c.test", true},
		{"blocked word", "Best CASINO offers", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spam, err := c.IsSpam(ctx, tt.content, "attribute_form")
			require.NoError(t, err)
			assert.Equal(t, tt.spam, spam)
		})
	}
}
