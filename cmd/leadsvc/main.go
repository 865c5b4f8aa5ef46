// @title                      Lead Intake API
// @version                    1.0
// @description                Public lead capture and first-come claim arbitration for sales agents.
// @BasePath                   /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by a space and the token from /auth/login.
package main

import (
	"os"

	"github.com/tbourn/go-lead-intake/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
