// Package token mints and validates the stateless session tokens issued
// after a successful OTP verification. A token binds a principal id with an
// HS256 signature and a fixed 21-day expiry; validity is determined solely
// by signature and expiry, there is no server-side revocation.
package token
