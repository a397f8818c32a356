// Package httpapi exposes the authentication core over HTTP: challenge
// request/verify endpoints for the signup and login flows, a bearer-guarded
// profile endpoint, and profile lookup by contact identifier.
//
// Success responses always carry {"success": true}; failures carry
// {"success": false, "error": ..., "code": ...} where code is one of
// NO_ACCOUNT, NOT_FOUND, ACCOUNT_EXISTS, TOO_MANY_REQUESTS, INVALID_OTP,
// EXPIRED_OTP, or DUPLICATE.
package httpapi
