package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomofees/core/user"
)

// feeStaffMiddleware only lets through operators allowed to manage fees.
func feeStaffMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			usr := user.User{IsActive: true, Roles: claims.Roles} // tokens are only issued to active users
			if claims.SchoolID != "" && usr.CanManageFees() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
