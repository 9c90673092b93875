// Package handler exposes the MatchScore use cases over HTTP.
package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"github.com/Match-Score-project/Match-Score/internal/docstore"
	"github.com/Match-Score-project/Match-Score/internal/dto"
	"github.com/Match-Score-project/Match-Score/internal/identity"
	"github.com/Match-Score-project/Match-Score/internal/media"
	"github.com/Match-Score-project/Match-Score/internal/repo"
	"github.com/Match-Score-project/Match-Score/internal/service"
	"github.com/Match-Score-project/Match-Score/internal/slots"
	"github.com/Match-Score-project/Match-Score/pkg/validator"
)

type Handler struct {
	svc  *service.Service
	auth *identity.Service
	log  *zerolog.Logger
	// CookieSecure marks preference and flash cookies Secure.
	CookieSecure bool
}

func New(svc *service.Service, auth *identity.Service, log *zerolog.Logger) *Handler {
	return &Handler{svc: svc, auth: auth, log: log}
}

// bind decodes and validates a JSON body, answering 400 on failure.
func (h *Handler) bind(c *ginext.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.log.Debug().Err(err).Str("path", c.FullPath()).Msg("failed to parse request body")
		dto.BadResponseError(c, dto.FieldBadFormat, "Invalid JSON format")
		return false
	}
	if verr := validator.Validate(c.Request.Context(), req); verr != nil {
		dto.BadResponseError(c, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return false
	}
	return true
}

// fail maps a use-case error onto the response envelope.
func (h *Handler) fail(c *ginext.Context, err error, op string) {
	switch {
	case errors.Is(err, repo.ErrMatchNotFound):
		dto.MatchNotFoundError(c)
	case errors.Is(err, repo.ErrRegistrationNotFound):
		dto.RegistrationNotFoundError(c)
	case errors.Is(err, repo.ErrUserNotFound):
		dto.NotFoundError(c, dto.UserNotFound, "Usuário não encontrado.")
	case errors.Is(err, repo.ErrFriendshipNotFound), errors.Is(err, service.ErrNoPendingRequest):
		dto.NotFoundError(c, dto.FriendshipNotFound, "Pedido de amizade não encontrado.")
	case errors.Is(err, service.ErrNotFriends):
		dto.NotFoundError(c, dto.FriendshipNotFound, "Vocês não são amigos.")
	case errors.Is(err, repo.ErrNotificationNotFound):
		dto.NotFoundError(c, dto.NotificationNotFound, "Notificação não encontrada.")

	case errors.Is(err, service.ErrForbidden):
		dto.ForbiddenError(c, "Você não tem permissão para esta ação.")
	case errors.Is(err, service.ErrCannotRemoveSelf):
		dto.BadResponseError(c, dto.FieldIncorrect, "O organizador não pode remover a si mesmo.")

	case errors.Is(err, service.ErrAlreadyRegistered), errors.Is(err, docstore.ErrAlreadyExists):
		dto.RegistrationDuplicateError(c)
	case errors.Is(err, service.ErrAlreadyInMatch):
		dto.ConflictError(c, dto.RegistrationDuplicate, "Este amigo já está na partida.")
	case errors.Is(err, slots.ErrPositionRequired):
		dto.BadResponseError(c, dto.PositionRequired, "Por favor, selecione uma posição.")
	case errors.Is(err, slots.ErrUnknownPosition):
		dto.BadResponseError(c, dto.PositionUnknown, "Posição inválida para esta modalidade.")
	case errors.Is(err, slots.ErrSlotTaken):
		dto.ConflictError(c, dto.SlotTaken, "A vaga acabou de ser preenchida. Tente novamente.")
	case errors.Is(err, slots.ErrPositionFull):
		dto.ConflictError(c, dto.PositionSoldOut, "Esta posição está esgotada. Escolha outra.")
	case errors.Is(err, slots.ErrMatchFull):
		dto.ConflictError(c, dto.MatchFull, "Partida lotada!")

	case errors.Is(err, service.ErrInvalidMatch):
		dto.BadResponseError(c, dto.FieldIncorrect, "Preencha todos os campos da partida.")
	case errors.Is(err, service.ErrPastDate):
		dto.BadResponseError(c, dto.FieldIncorrect, "A data da partida não pode estar no passado.")
	case errors.Is(err, service.ErrSlotsBelowRoster):
		dto.BadResponseError(c, dto.FieldIncorrect, "O total de vagas não pode ser menor que o número de inscritos.")
	case errors.Is(err, service.ErrInvalidTheme):
		dto.FieldIncorrectError(c, "theme")

	case errors.Is(err, service.ErrSearchTooShort):
		dto.BadResponseError(c, dto.SearchTooShort, "Digite pelo menos 3 caracteres para buscar.")
	case errors.Is(err, service.ErrSelfFriendship):
		dto.BadResponseError(c, dto.FieldIncorrect, "Você não pode adicionar a si mesmo.")
	case errors.Is(err, service.ErrFriendshipExists):
		dto.ConflictError(c, dto.FriendshipExists, "Vocês já são amigos ou há um pedido pendente.")

	case errors.Is(err, identity.ErrEmailInUse):
		dto.ConflictError(c, dto.EmailInUse, "Este e-mail já está cadastrado ou vinculado a outra conta.")
	case errors.Is(err, identity.ErrInvalidCredentials):
		dto.ErrorResponse(c, http.StatusUnauthorized, dto.InvalidCredentials, "E-mail ou senha incorretos.")
	case errors.Is(err, identity.ErrPasswordMismatch):
		dto.BadResponseError(c, dto.FieldIncorrect, "As senhas não coincidem.")
	case errors.Is(err, identity.ErrWeakPassword):
		dto.BadResponseError(c, dto.FieldIncorrect, "A senha deve ter pelo menos 6 caracteres.")
	case errors.Is(err, identity.ErrInvalidToken):
		dto.BadResponseError(c, dto.InvalidToken, "Link de redefinição inválido ou expirado.")
	case errors.Is(err, identity.ErrUnauthenticated):
		dto.UnauthorizedError(c, "Sessão expirada. Faça login novamente.")

	case errors.Is(err, media.ErrTooLarge):
		dto.BadResponseError(c, dto.ImageInvalid, "A imagem é muito grande.")
	case errors.Is(err, media.ErrBadDataURL), errors.Is(err, media.ErrNotImage):
		dto.BadResponseError(c, dto.ImageInvalid, "Envie uma imagem válida.")
	case errors.Is(err, media.ErrUploadsUnsupported):
		dto.ErrorResponse(c, http.StatusNotImplemented, dto.UploadsUnsupported, "Envio direto de imagens não está disponível.")

	default:
		h.log.Error().Err(err).Str("op", op).Msg("request failed")
		dto.InternalServerError(c)
	}
}
