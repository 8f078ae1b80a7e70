package errors

import (
	"fmt"

	apperrors "github.com/burakmert236/volei-list/common/errors"
)

func RegistrationClosedError(opensAt, closesAt string) *apperrors.AppError {
	return apperrors.New(apperrors.CodeRegistrationClosed,
		fmt.Sprintf("Inscrições só são permitidas entre %s e %s", opensAt, closesAt))
}

func DuplicateNameError() *apperrors.AppError {
	return apperrors.New(apperrors.CodeDuplicateName, "Você já está inscrito")
}

func RosterFullError() *apperrors.AppError {
	return apperrors.New(apperrors.CodeRosterFull, "Lista de vagas e espera estão completas")
}

func EntryNotFoundError() *apperrors.AppError {
	return apperrors.New(apperrors.CodeEntryNotFound, "Inscrição não encontrada")
}

func EmptyNameError() *apperrors.AppError {
	return apperrors.New(apperrors.CodeInvalidInput, "Informe um nome")
}

func NameTooLongError(limit int) *apperrors.AppError {
	return apperrors.New(apperrors.CodeInvalidInput,
		fmt.Sprintf("O nome deve ter no máximo %d caracteres", limit))
}

func StoreError(err error, op string) *apperrors.AppError {
	return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to "+op)
}

func ConflictError(err error) *apperrors.AppError {
	return apperrors.Wrap(err, apperrors.CodeConflict, "roster changed concurrently, try again")
}
