// Package env loads .env files so that ${VAR} references in restapi config
// files and flags can be filled from them.
package env
