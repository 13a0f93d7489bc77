package providers

import (
	"github.com/samber/do/v2"

	"github.com/contiapp/conti-server/internal/auth"
	"github.com/contiapp/conti-server/internal/config"
	"github.com/contiapp/conti-server/internal/logger"
	"github.com/contiapp/conti-server/internal/media/images"
	"github.com/contiapp/conti-server/internal/resolver"
	"github.com/contiapp/conti-server/internal/service"
	"github.com/contiapp/conti-server/internal/validation"
)

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideResolver provides the song identity resolver.
func ProvideResolver(i do.Injector) (*resolver.Resolver, error) {
	cfg := do.MustInvoke[*config.Config](i)
	repo := do.MustInvoke[*SheetRepositoryHandle](i)
	pages := do.MustInvoke[*images.Storage](i)
	log := do.MustInvoke[*logger.Logger](i)

	return resolver.New(repo.SheetRepository, pages, log.Logger,
		resolver.WithStrictIdentity(cfg.Resolver.StrictIdentity),
	), nil
}

// ProvideSessionService provides the session management service.
func ProvideSessionService(i do.Injector) (*service.SessionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSessionService(storeHandle.Store, tokenService, log.Logger), nil
}

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	sessionService := do.MustInvoke[*service.SessionService](i)
	kakaoHandle := do.MustInvoke[*KakaoClientHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	// A nil *KakaoClient must not reach the interface parameter.
	var kakao service.KakaoProvider
	if kakaoHandle.Client != nil {
		kakao = kakaoHandle.Client
	}

	return service.NewAuthService(storeHandle.Store, tokenService, sessionService, kakao, log.Logger), nil
}

// ProvideUserService provides the user management service.
func ProvideUserService(i do.Injector) (*service.UserService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewUserService(storeHandle.Store, log.Logger), nil
}

// ProvideSheetService provides the song sheet library service.
func ProvideSheetService(i do.Injector) (*service.SheetService, error) {
	repo := do.MustInvoke[*SheetRepositoryHandle](i)
	res := do.MustInvoke[*resolver.Resolver](i)
	pages := do.MustInvoke[*images.Storage](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSheetService(
		repo.SheetRepository,
		res,
		pages,
		indexHandle.SearchIndex,
		sseHandle.Manager,
		validator,
		log.Logger,
	), nil
}

// ProvideSetlistService provides the setlist service.
func ProvideSetlistService(i do.Injector) (*service.SetlistService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	repo := do.MustInvoke[*SheetRepositoryHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSetlistService(storeHandle.Store, repo.SheetRepository, sseHandle.Manager, validator, log.Logger), nil
}

// ProvideTeamService provides the team and calendar service.
func ProvideTeamService(i do.Injector) (*service.TeamService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTeamService(storeHandle.Store, sseHandle.Manager, validator, log.Logger), nil
}
