package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"gar-loader/lib/gar/updater"
	apimodels "gar-loader/models/api"
)

type garApiController struct {
	upd updater.Provider
}

// Служебный интерфейс демона: состояние цикла обновления и проверка
// новых версий без применения
func InitGarApiRouters(app *fiber.App, upd updater.Provider) {
	controller := garApiController{upd: upd}
	app.Get("status", controller.status)
	app.Get("check", controller.check)
}

// @Summary Состояние цикла обновления
// @Tags ГАР
// @Success 200 {object} apimodels.Response{data=updater.Status}
// @router /api/v1/gar/status [get]
func (c *garApiController) status(ctx *fiber.Ctx) error {
	return ctx.JSON(apimodels.NewResponse(c.upd.Status()))
}

// @Summary Проверка наличия новых версий
// @Tags ГАР
// @Success 200 {object} apimodels.Response{data=updater.CheckResult}
// @Failure 500 {object} apimodels.Response
// @router /api/v1/gar/check [get]
func (c *garApiController) check(ctx *fiber.Ctx) error {
	result, err := c.upd.Check(ctx.Context())
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(apimodels.NewError(err.Error()))
	}
	return ctx.JSON(apimodels.NewResponse(result))
}
