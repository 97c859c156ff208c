package tokenstore

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"assistant-bridge/internal/bridge/localstore"
	"assistant-bridge/internal/domain"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func signed(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func newTestStore(t *testing.T, storage Storage) *Store {
	t.Helper()
	s, err := New(storage, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return s
}

type failingStorage struct{ err error }

func (f failingStorage) Get(string) (string, bool, error) { return "", false, f.err }
func (f failingStorage) Set(string, string) error         { return f.err }
func (f failingStorage) Delete(string) error              { return f.err }

func TestNew_NilStorage(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestGet_ValidCredential(t *testing.T) {
	s := newTestStore(t, localstore.NewMemory())
	tok := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour))})
	require.NoError(t, s.Set(domain.Credential(tok)))

	got, ok := s.Get()
	require.True(t, ok)
	require.Equal(t, domain.Credential(tok), got)
}

func TestGet_ExpiredCredential(t *testing.T) {
	s := newTestStore(t, localstore.NewMemory())
	tok := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(fixedNow.Add(-time.Second))})
	require.NoError(t, s.Set(domain.Credential(tok)))

	_, ok := s.Get()
	require.False(t, ok)
}

func TestGet_ExpiryEqualToNowIsExpired(t *testing.T) {
	s := newTestStore(t, localstore.NewMemory())
	tok := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(fixedNow)})
	require.NoError(t, s.Set(domain.Credential(tok)))

	_, ok := s.Get()
	require.False(t, ok)
}

func TestGet_UndecodableValuesFailClosed(t *testing.T) {
	cases := map[string]string{
		"opaque string": "not-a-jwt",
		"two segments":  "abc.def",
		"bad base64":    "###.@@@.!!!",
		"no exp claim":  signed(t, jwt.RegisteredClaims{Subject: "user-1"}),
		"whitespace":    "   ",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			mem := localstore.NewMemory()
			require.NoError(t, mem.Set(DefaultKey, raw))
			s := newTestStore(t, mem)
			_, ok := s.Get()
			require.False(t, ok)
		})
	}
}

func TestGet_EmptyStorage(t *testing.T) {
	s := newTestStore(t, localstore.NewMemory())
	_, ok := s.Get()
	require.False(t, ok)
}

func TestGet_StorageErrorFailsClosed(t *testing.T) {
	s := newTestStore(t, failingStorage{err: errors.New("disk gone")})
	_, ok := s.Get()
	require.False(t, ok)
}

func TestSet_ReplacesPriorValue(t *testing.T) {
	mem := localstore.NewMemory()
	s := newTestStore(t, mem)
	first := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)), ID: "1"})
	second := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)), ID: "2"})
	require.NoError(t, s.Set(domain.Credential(first)))
	require.NoError(t, s.Set(domain.Credential(second)))

	got, ok := s.Get()
	require.True(t, ok)
	require.Equal(t, domain.Credential(second), got)
}

func TestSet_EmptyCredential(t *testing.T) {
	s := newTestStore(t, localstore.NewMemory())
	require.Error(t, s.Set(" "))
}

func TestSet_StorageError(t *testing.T) {
	s := newTestStore(t, failingStorage{err: errors.New("quota exceeded")})
	err := s.Set("x.y.z")
	require.Error(t, err)
	require.Contains(t, err.Error(), "quota exceeded")
}

func TestClear_RemovesCredential(t *testing.T) {
	mem := localstore.NewMemory()
	s := newTestStore(t, mem)
	tok := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour))})
	require.NoError(t, s.Set(domain.Credential(tok)))
	require.NoError(t, s.Clear())

	_, ok := s.Get()
	require.False(t, ok)
	_, present, _ := mem.Get(DefaultKey)
	require.False(t, present)
}

func TestWithKey_UsesCustomKey(t *testing.T) {
	mem := localstore.NewMemory()
	s, err := New(mem, WithKey("custom"), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	tok := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour))})
	require.NoError(t, s.Set(domain.Credential(tok)))

	_, ok, _ := mem.Get("custom")
	require.True(t, ok)
	_, ok, _ = mem.Get(DefaultKey)
	require.False(t, ok)
}
