// Package internal holds helpers shared by authcore that are not part of
// the public surface: OTP generation and small string checks.
package internal
