// Package testsupport provides shared helpers for package tests: temp-dir
// backed configurations, store builders, and asset fixtures.
package testsupport
