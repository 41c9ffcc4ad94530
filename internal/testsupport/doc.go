// Package testsupport holds helpers shared by package tests: temp-dir backed
// configs, journal fixtures and deterministic payloads.
package testsupport
