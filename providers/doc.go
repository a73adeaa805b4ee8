// Package providers holds the payload helpers shared by the built-in bank
// adapters. Concrete adapters live in providers/rest and providers/mpesa.
package providers
