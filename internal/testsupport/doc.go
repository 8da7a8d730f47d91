// Package testsupport provides helpers shared by package tests: temp-dir
// configs, a store opener, and in-memory fakes for the workflow engine ports.
package testsupport
