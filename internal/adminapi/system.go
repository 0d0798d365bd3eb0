package adminapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/supplychain/internal/app"
	"github.com/talkincode/supplychain/internal/domain"
	"github.com/talkincode/supplychain/internal/webserver"
	"gorm.io/gorm/schema"
)

type tableInfo struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

// registerSystemRoutes registers maintenance endpoints
func registerSystemRoutes() {
	webserver.ApiGET("/system/tables", systemListTables)
	webserver.ApiPOST("/system/migrate", systemMigrate)
	webserver.ApiGET("/system/jobs", systemListJobs)
	webserver.ApiPOST("/system/jobs/:name/run", systemRunJob)
}

// systemListTables lists the application tables with their row counts
// @Summary list tables
// @Tags System
// @Success 200 {object} Response
// @Router /api/v1/system/tables [get]
func systemListTables(c echo.Context) error {
	db := GetDB(c)
	rows := make([]tableInfo, 0, len(domain.Tables))
	for _, model := range domain.Tables {
		var name string
		if tn, ok := model.(schema.Tabler); ok {
			name = tn.TableName()
		}
		var count int64
		if err := db.Model(model).Count(&count).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count table rows", err.Error())
		}
		rows = append(rows, tableInfo{Name: name, Rows: count})
	}
	return ok(c, rows)
}

// systemMigrate applies the schema migration
// @Summary migrate database
// @Tags System
// @Success 204
// @Router /api/v1/system/migrate [post]
func systemMigrate(c echo.Context) error {
	if err := GetAppContext(c).MigrateDB(false); err != nil {
		return fail(c, http.StatusInternalServerError, "MIGRATE_FAILED", "Database migration failed", err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// systemListJobs lists the scheduled jobs
// @Summary list jobs
// @Tags System
// @Success 200 {object} Response
// @Router /api/v1/system/jobs [get]
func systemListJobs(c echo.Context) error {
	return ok(c, GetAppContext(c).Jobs())
}

// systemRunJob triggers a scheduled job immediately
// @Summary run job
// @Tags System
// @Param name path string true "job name"
// @Success 204
// @Router /api/v1/system/jobs/{name}/run [post]
func systemRunJob(c echo.Context) error {
	if err := GetAppContext(c).RunJob(c.Param("name")); err != nil {
		if errors.Is(err, app.ErrJobNotFound) {
			return fail(c, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
		}
		return fail(c, http.StatusInternalServerError, "RUN_FAILED", "Failed to run job", err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
