package doctors

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SpecialtyGeneralPractice is the specialty auto-assignment selects from.
const SpecialtyGeneralPractice = "general-practice"

// ErrNotFound is returned when a doctor does not exist.
var ErrNotFound = errors.New("doctor not found")

// Doctor holds the attributes the queueing flows care about.
type Doctor struct {
	ID          uuid.UUID  `json:"id"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	Name        string     `json:"name"`
	Specialty   string     `json:"specialty"`
	IsAvailable bool       `json:"is_available"`
	IsOnDuty    bool       `json:"is_on_duty"`
	CreatedAt   time.Time  `json:"created_at"`
}
