package herd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/domain/rules"
	"github.com/mamadbah2/rabbitry/internal/repository"
)

const maxTagAttempts = 50

// AllocateTag draws the next farm sequence number until the generated tag is free.
// Manually registered tags can occupy numbers the sequence has not reached yet.
func AllocateTag(ctx context.Context, tx repository.Tx, farm models.Farm, breedCode string) (string, error) {
	for i := 0; i < maxTagAttempts; i++ {
		seq, err := tx.NextSequence(ctx, farm.ID, repository.SequenceAnimalTag)
		if err != nil {
			return "", fmt.Errorf("next tag sequence: %w", err)
		}
		tag := rules.GenerateTag(farm.TagPrefix, breedCode, seq)
		_, err = tx.FindAnimalByTag(ctx, farm.ID, tag)
		if errors.Is(err, models.ErrNotFound) {
			return tag, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: no free tag after %d attempts", models.ErrDuplicateTag, maxTagAttempts)
}

// CreateAnimal validates and stores a new animal, generating its tag when empty.
func CreateAnimal(ctx context.Context, tx repository.Tx, farm models.Farm, animal models.Animal) (models.Animal, error) {
	animal.Breed = strings.ToUpper(strings.TrimSpace(animal.Breed))
	animal.Tag = strings.ToUpper(strings.TrimSpace(animal.Tag))
	animal.FatherTag = strings.ToUpper(strings.TrimSpace(animal.FatherTag))
	animal.MotherTag = strings.ToUpper(strings.TrimSpace(animal.MotherTag))

	if animal.Breed == "" {
		return models.Animal{}, models.Validationf("breed is required")
	}
	if !farm.HasBreed(animal.Breed) {
		return models.Animal{}, models.Validationf("breed %s is not configured for this farm", animal.Breed)
	}
	if !animal.Sex.Valid() {
		return models.Animal{}, models.Validationf("sex must be Male, Female or Unknown, got %q", animal.Sex)
	}
	if animal.BirthDate.IsZero() {
		return models.Animal{}, models.Validationf("birth date is required")
	}
	if animal.Status == "" {
		animal.Status = models.StatusActive
	}
	if animal.Status.Terminal() || !animal.Status.Valid() {
		return models.Animal{}, models.Validationf("animal cannot be registered as %q", animal.Status)
	}
	if animal.Tag != "" && (animal.Tag == animal.FatherTag || animal.Tag == animal.MotherTag) {
		return models.Animal{}, models.Validationf("animal %s cannot be its own parent", animal.Tag)
	}

	if animal.Tag == "" {
		tag, err := AllocateTag(ctx, tx, farm, animal.Breed)
		if err != nil {
			return models.Animal{}, err
		}
		animal.Tag = tag
	}

	animal.HousingID = nil
	if err := tx.PutAnimal(ctx, animal); err != nil {
		return models.Animal{}, err
	}
	return animal, nil
}

// ResolveAnimal finds an animal by id, then by tag.
func ResolveAnimal(ctx context.Context, v repository.View, farmID, ref string) (models.Animal, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Animal{}, models.Validationf("animal reference is empty")
	}
	animal, err := v.GetAnimal(ctx, farmID, ref)
	if err == nil || !errors.Is(err, models.ErrNotFound) {
		return animal, err
	}
	return v.FindAnimalByTag(ctx, farmID, strings.ToUpper(ref))
}

// CloseMatings fails every Pending or Pregnant mating of a doe that left the herd.
func CloseMatings(ctx context.Context, tx repository.Tx, doe models.Animal, now time.Time) ([]models.MatingRecord, error) {
	all, err := tx.ListMatings(ctx, doe.FarmID)
	if err != nil {
		return nil, fmt.Errorf("list matings: %w", err)
	}
	var closed []models.MatingRecord
	for _, m := range all {
		if m.DoeID != doe.ID || m.Status.Terminal() {
			continue
		}
		m.Status = models.MatingFailed
		note := fmt.Sprintf("closed: doe %s", doe.Status)
		if m.Notes != "" {
			note = m.Notes + "; " + note
		}
		m.Notes = note
		m.UpdatedAt = now
		if err := tx.PutMating(ctx, m); err != nil {
			return nil, err
		}
		closed = append(closed, m)
	}
	return closed, nil
}
