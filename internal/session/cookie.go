package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

// CookieCodec firma el id de sesión antes de ponerlo en el cookie, para que
// un cliente no pueda fabricar ids arbitrarios contra el store.
type CookieCodec struct {
	secret []byte
}

func NewCookieCodec(secret string) *CookieCodec {
	return &CookieCodec{secret: []byte(secret)}
}

// Encode produce el valor de cookie "sid.firma".
func (c *CookieCodec) Encode(sid string) string {
	return sid + "." + c.sign(sid)
}

// Decode valida la firma y devuelve el sid, o false si el valor fue
// manipulado o no tiene el formato esperado.
func (c *CookieCodec) Decode(value string) (string, bool) {
	sid, sig, found := strings.Cut(value, ".")
	if !found || sid == "" {
		return "", false
	}
	expected := c.sign(sid)
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return "", false
	}
	return sid, true
}

func (c *CookieCodec) sign(sid string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(sid))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
