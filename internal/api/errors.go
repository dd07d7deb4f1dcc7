package api

import (
	stderrors "errors"
	"net/http"

	"persona-nft/backend/ai"
	"persona-nft/backend/internal/chat"
	"persona-nft/backend/internal/contract"
	"persona-nft/backend/internal/metadata"
	"persona-nft/backend/internal/mint"
	"persona-nft/backend/internal/wallet"
	"persona-nft/backend/pkg/errors"
	"persona-nft/backend/pkg/resilience"
)

// ToAppError maps a domain error onto the notice shown to the user
func ToAppError(err error) *errors.AppError {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var out *errors.AppError
	switch {
	case stderrors.Is(err, wallet.ErrNoProviderFound):
		out = errors.NewError(http.StatusServiceUnavailable, errors.CodeNoProviderFound, "No wallet provider found")
	case stderrors.Is(err, wallet.ErrUserRejected):
		out = errors.NewForbiddenError(errors.CodeUserRejected, "Wallet connection was rejected")
	case stderrors.Is(err, wallet.ErrNoWalletConnected):
		out = errors.NewBadRequestError(errors.CodeNoWalletConnected, "Connect your wallet first")
	case stderrors.Is(err, contract.ErrTransactionReverted):
		out = errors.NewError(http.StatusUnprocessableEntity, errors.CodeTransactionReverted, "The transaction was reverted")
	case stderrors.Is(err, contract.ErrTransactionRejected), stderrors.Is(err, wallet.ErrSignatureRejected):
		out = errors.NewError(http.StatusUnprocessableEntity, errors.CodeTransactionRejected, "The transaction was rejected")
	case stderrors.Is(err, contract.ErrCharacterNotFound):
		out = errors.NewNotFoundError(errors.CodeCharacterNotFound, "Character not found")
	case stderrors.Is(err, ai.ErrCharacterNotFound):
		out = errors.NewNotFoundError(errors.CodeCharacterNotFound, ai.CategoryCharacterNotFound.Message())
	case stderrors.Is(err, contract.ErrContractRead), stderrors.Is(err, contract.ErrChainMismatch):
		out = errors.NewBadGatewayError(errors.CodeContractRead, "Could not read from the character contract")
	case stderrors.Is(err, metadata.ErrUploadFailed), stderrors.Is(err, resilience.ErrCircuitOpen):
		out = errors.NewBadGatewayError(errors.CodeUploadFailed, "Uploading to IPFS failed")
	case stderrors.Is(err, mint.ErrInvalidAvatar):
		out = errors.NewBadRequestError(errors.CodeInvalidRequest, "Avatar image is not a valid image")
	case stderrors.Is(err, chat.ErrSessionNotFound):
		out = errors.NewNotFoundError(errors.CodeSessionNotFound, "Chat session not found")
	case stderrors.Is(err, chat.ErrSessionClosed):
		out = errors.NewError(http.StatusGone, errors.CodeSessionClosed, "Chat session is closed")
	case stderrors.Is(err, chat.ErrReplyPending):
		out = errors.NewConflictError(errors.CodeReplyPending, "Wait for the current reply")
	case stderrors.Is(err, chat.ErrEmptyMessage):
		out = errors.NewBadRequestError(errors.CodeInvalidRequest, "Message cannot be empty")
	default:
		out = errors.NewInternalServerError(errors.CodeInternal, "Something went wrong")
	}
	return out.WithCause(err)
}

func invalidRequest(err error) *errors.AppError {
	return errors.NewBadRequestError(errors.CodeInvalidRequest, "Invalid request format").WithCause(err)
}
