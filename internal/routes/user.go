package routes

import (
	"github.com/labstack/echo/v4"

	"user-management/internal/authz"
	"user-management/internal/controllers"
	"user-management/pkg/middleware"
)

func runUserRouter(secureGroup *echo.Group, authMW *middleware.AuthMiddleware, userCtrl *controllers.UserController) {
	managers := authMW.RequireRoles(authz.RoleAdmin, authz.RoleManager)
	admins := authMW.RequireRoles(authz.RoleAdmin)

	secureGroup.GET("/users/export", userCtrl.ExportUsers, admins)
	secureGroup.GET("/users", userCtrl.GetUsers, managers)
	secureGroup.GET("/users/:id", userCtrl.FindUser)
	secureGroup.POST("/users", userCtrl.CreateUser, managers)
	secureGroup.PUT("/users/:id", userCtrl.UpdateUser, managers)
	secureGroup.DELETE("/users/:id", userCtrl.DeleteUser, managers)
}
