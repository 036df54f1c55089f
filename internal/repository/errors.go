package repository

import (
	"fmt"

	"github.com/google/uuid"
)

// AlreadyImportedError reports that a study is already registered in the
// system-of-record. It carries the existing registration so callers can fold
// the conflict into a success: the desired end state is already reached.
type AlreadyImportedError struct {
	StudyInstanceUID string
	RegistrationID   uuid.UUID
}

func (e *AlreadyImportedError) Error() string {
	return fmt.Sprintf("study %s already imported as registration %s", e.StudyInstanceUID, e.RegistrationID)
}
