package housing

import (
	"errors"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
)

func isNotFound(err error) bool { return errors.Is(err, models.ErrNotFound) }
