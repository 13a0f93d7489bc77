// Package di provides dependency injection configuration for the Conti server.
package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/contiapp/conti-server/internal/auth"
	"github.com/contiapp/conti-server/internal/config"
	"github.com/contiapp/conti-server/internal/di/providers"
	"github.com/contiapp/conti-server/internal/logger"
	"github.com/contiapp/conti-server/internal/media/images"
	"github.com/contiapp/conti-server/internal/resolver"
	"github.com/contiapp/conti-server/internal/service"
)

// NewContainer registers every provider. Nothing is built until Bootstrap.
func NewContainer() *do.RootScope {
	injector := do.New()

	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideValidator)

	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSheetRepository)

	do.Provide(injector, providers.ProvidePageStorage)

	do.Provide(injector, providers.ProvideSearchIndex)

	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideKakaoClient)

	do.Provide(injector, providers.ProvideResolver)
	do.Provide(injector, providers.ProvideSessionService)
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideUserService)
	do.Provide(injector, providers.ProvideSheetService)
	do.Provide(injector, providers.ProvideSetlistService)
	do.Provide(injector, providers.ProvideTeamService)

	do.Provide(injector, providers.ProvideSessionCleanupJob)

	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// invoke resolves T so its provider runs now rather than on first use.
func invoke[T any](injector do.Injector) error {
	_, err := do.Invoke[T](injector)
	return err
}

// Bootstrap eagerly builds every service in dependency order, so a bad
// configuration fails at startup instead of on the first request.
func Bootstrap(injector *do.RootScope) error {
	steps := []struct {
		name   string
		invoke func(do.Injector) error
	}{
		{"config", invoke[*config.Config]},
		{"logger", invoke[*logger.Logger]},
		{"auth key", invoke[providers.AuthKey]},
		{"event stream", invoke[*providers.SSEManagerHandle]},
		{"database", invoke[*providers.StoreHandle]},
		{"sheet repository", invoke[*providers.SheetRepositoryHandle]},
		{"page storage", invoke[*images.Storage]},
		{"search index", invoke[*providers.SearchIndexHandle]},
		{"token service", invoke[*auth.TokenService]},
		{"kakao client", invoke[*providers.KakaoClientHandle]},
		{"resolver", invoke[*resolver.Resolver]},
		{"session service", invoke[*service.SessionService]},
		{"auth service", invoke[*service.AuthService]},
		{"user service", invoke[*service.UserService]},
		{"sheet service", invoke[*service.SheetService]},
		{"setlist service", invoke[*service.SetlistService]},
		{"team service", invoke[*service.TeamService]},
		{"session cleanup", invoke[*providers.SessionCleanupJob]},
		{"http server", invoke[*providers.HTTPServerHandle]},
	}
	for _, step := range steps {
		if err := step.invoke(injector); err != nil {
			return fmt.Errorf("init %s: %w", step.name, err)
		}
	}

	providers.TriggerSearchReindexIfNeeded(injector)
	return nil
}
