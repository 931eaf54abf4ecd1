// Package herd registers animals and drives their lifecycle: weaning, medical
// events, death and sale.
package herd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/domain/rules"
	"github.com/mamadbah2/rabbitry/internal/repository"
	"github.com/mamadbah2/rabbitry/internal/service/farms"
	"github.com/mamadbah2/rabbitry/internal/service/finance"
	"github.com/mamadbah2/rabbitry/internal/service/housing"
)

// Causes accepted by RecordDeath.
const (
	CauseNatural   = "natural"
	CauseProcessed = "processed"
)

// RegisterInput describes a born or purchased animal.
type RegisterInput struct {
	Tag           string              `json:"tag"`
	Breed         string              `json:"breed"`
	Sex           models.Sex          `json:"sex"`
	BirthDate     string              `json:"birth_date"`
	Source        models.AnimalSource `json:"source"`
	AcquiredDate  string              `json:"acquired_date"`
	PurchasePrice float64             `json:"purchase_price"`
	Seller        string              `json:"seller"`
	FatherTag     string              `json:"father_tag"`
	MotherTag     string              `json:"mother_tag"`
	WeightKg      float64             `json:"weight_kg"`
	Notes         string              `json:"notes"`
	HousingID     string              `json:"housing_id"`
}

// UpdateInput patches descriptive fields. Nil fields are left untouched.
type UpdateInput struct {
	Sex       *models.Sex `json:"sex"`
	Breed     *string     `json:"breed"`
	WeightKg  *float64    `json:"weight_kg"`
	Notes     *string     `json:"notes"`
	FatherTag *string     `json:"father_tag"`
	MotherTag *string     `json:"mother_tag"`
}

// WeanInput moves a kit to its grow-out housing.
type WeanInput struct {
	HousingID string `json:"housing_id"`
	Date      string `json:"date"`
}

// MedicalInput records a health event.
type MedicalInput struct {
	Date        string             `json:"date"`
	Kind        models.MedicalKind `json:"kind"`
	Description string             `json:"description"`
	Medication  string             `json:"medication"`
	Cost        float64            `json:"cost"`
}

// DeathInput records a natural death or a processing.
type DeathInput struct {
	Cause  string  `json:"cause"`
	Date   string  `json:"date"`
	Note   string  `json:"note"`
	Buyer  string  `json:"buyer"`
	Amount float64 `json:"amount"`
}

// SaleInput sells one or more animals, referenced by id or tag, for a total amount.
type SaleInput struct {
	Animals []string `json:"animals"`
	Amount  float64  `json:"amount"`
	Buyer   string   `json:"buyer"`
	Date    string   `json:"date"`
	Note    string   `json:"note"`
}

// Result is an animal change plus any ledger side effects.
type Result struct {
	Animal      models.Animal         `json:"animal"`
	Transaction *models.Transaction   `json:"transaction,omitempty"`
	Medical     *models.MedicalRecord `json:"medical,omitempty"`
	Warnings    []models.Warning      `json:"warnings,omitempty"`
}

// SaleResult is the outcome of SellAnimals.
type SaleResult struct {
	Animals     []models.Animal    `json:"animals"`
	Transaction models.Transaction `json:"transaction"`
}

// Service manages animals.
type Service struct {
	store   repository.Store
	housing *housing.Service
	finance *finance.Service
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires the herd service.
func NewService(store repository.Store, housingSvc *housing.Service, financeSvc *finance.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, housing: housingSvc, finance: financeSvc, logger: logger, now: time.Now}
}

// Register adds an animal. A purchase price records a Purchase expense in the same transaction.
func (s *Service) Register(ctx context.Context, actor, farmID string, in RegisterInput) (Result, error) {
	if in.PurchasePrice < 0 {
		return Result{}, models.Validationf("purchase price must not be negative")
	}
	source := in.Source
	if source == "" {
		source = models.SourceBorn
		if in.PurchasePrice > 0 || in.AcquiredDate != "" {
			source = models.SourcePurchased
		}
	}
	if source != models.SourceBorn && source != models.SourcePurchased {
		return Result{}, models.Validationf("source must be Born or Purchased, got %q", source)
	}
	if source == models.SourceBorn && in.PurchasePrice > 0 {
		return Result{}, models.Validationf("born animals have no purchase price")
	}

	var (
		farm   models.Farm
		result Result
		move   housing.Move
	)
	err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		var err error
		farm, err = farms.Authorize(ctx, tx, actor, farmID)
		if err != nil {
			return err
		}
		today := s.now().In(farm.Location())
		birth, err := models.ParseDay(in.BirthDate)
		if err != nil {
			return fmt.Errorf("birth date: %w", err)
		}
		if birth.After(models.Day(today)) {
			return models.Validationf("birth date %s is in the future", in.BirthDate)
		}

		now := s.now().UTC()
		animal := models.Animal{
			ID:        uuid.NewString(),
			FarmID:    farmID,
			Tag:       in.Tag,
			Breed:     in.Breed,
			Sex:       in.Sex,
			BirthDate: birth,
			Source:    source,
			Status:    models.StatusActive,
			FatherTag: in.FatherTag,
			MotherTag: in.MotherTag,
			WeightKg:  in.WeightKg,
			Notes:     in.Notes,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if source == models.SourcePurchased {
			acquired, err := models.ParseEventDay(in.AcquiredDate, today)
			if err != nil {
				return fmt.Errorf("acquired date: %w", err)
			}
			animal.AcquiredDate = &acquired
		}

		animal, err = CreateAnimal(ctx, tx, farm, animal)
		if err != nil {
			return err
		}
		result.Animal = animal

		if in.HousingID != "" {
			unit, err := housing.FindUnit(ctx, tx, farmID, in.HousingID)
			if err != nil {
				return err
			}
			move, err = housing.Assign(ctx, tx, farm, animal, unit.ID, models.PurposeHousing, "", now)
			if err != nil {
				return err
			}
			result.Animal = move.Animal
			result.Warnings = move.Warnings
		}

		if in.PurchasePrice > 0 {
			txn, err := finance.NewTransaction(farmID, models.TransactionExpense, models.CategoryPurchase, in.PurchasePrice, *animal.AcquiredDate, now)
			if err != nil {
				return err
			}
			txn.ReferenceKind = models.ReferencePurchase
			txn.ReferenceIDs = []string{animal.ID}
			txn.ReferenceTags = []string{animal.Tag}
			txn.Counterparty = in.Seller
			if err := tx.PutTransaction(ctx, txn); err != nil {
				return err
			}
			result.Transaction = &txn
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("animal registered",
		zap.String("farm_id", farmID),
		zap.String("tag", result.Animal.Tag),
		zap.String("source", string(source)),
	)
	if in.HousingID != "" {
		s.housing.Observe(farmID, move)
	}
	if result.Transaction != nil {
		s.finance.Publish(ctx, farm, *result.Transaction)
	}
	return result, nil
}

// Get returns one animal by id or tag.
func (s *Service) Get(ctx context.Context, actor, farmID, ref string) (models.Animal, error) {
	var animal models.Animal
	err := s.store.View(ctx, func(v repository.View) error {
		if _, err := farms.Authorize(ctx, v, actor, farmID); err != nil {
			return err
		}
		var err error
		animal, err = ResolveAnimal(ctx, v, farmID, ref)
		return err
	})
	return animal, err
}

// List returns the farm's animals matching filter, ordered by tag.
func (s *Service) List(ctx context.Context, actor, farmID string, filter repository.AnimalFilter) ([]models.Animal, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, models.Validationf("unknown status %q", filter.Status)
	}
	var animals []models.Animal
	err := s.store.View(ctx, func(v repository.View) error {
		if _, err := farms.Authorize(ctx, v, actor, farmID); err != nil {
			return err
		}
		var err error
		animals, err = v.ListAnimals(ctx, farmID, filter)
		return err
	})
	return animals, err
}

// Update patches descriptive fields. Status and housing change only through their own operations.
func (s *Service) Update(ctx context.Context, actor, farmID, ref string, in UpdateInput) (models.Animal, error) {
	var animal models.Animal
	err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		farm, err := farms.Authorize(ctx, tx, actor, farmID)
		if err != nil {
			return err
		}
		animal, err = ResolveAnimal(ctx, tx, farmID, ref)
		if err != nil {
			return err
		}
		if in.Sex != nil {
			if !in.Sex.Valid() {
				return models.Validationf("sex must be Male, Female or Unknown, got %q", *in.Sex)
			}
			animal.Sex = *in.Sex
		}
		if in.Breed != nil {
			breed := strings.ToUpper(strings.TrimSpace(*in.Breed))
			if breed == "" || !farm.HasBreed(breed) {
				return models.Validationf("breed %q is not configured for this farm", *in.Breed)
			}
			animal.Breed = breed
		}
		if in.WeightKg != nil {
			if *in.WeightKg < 0 {
				return models.Validationf("weight must not be negative")
			}
			animal.WeightKg = *in.WeightKg
		}
		if in.Notes != nil {
			animal.Notes = *in.Notes
		}
		if in.FatherTag != nil {
			animal.FatherTag = strings.ToUpper(strings.TrimSpace(*in.FatherTag))
		}
		if in.MotherTag != nil {
			animal.MotherTag = strings.ToUpper(strings.TrimSpace(*in.MotherTag))
		}
		if animal.Tag == animal.FatherTag || animal.Tag == animal.MotherTag {
			return models.Validationf("animal %s cannot be its own parent", animal.Tag)
		}
		animal.UpdatedAt = s.now().UTC()
		return tx.PutAnimal(ctx, animal)
	})
	return animal, err
}

// Wean marks a kit Weaned and, when a housing unit is given, moves it there.
func (s *Service) Wean(ctx context.Context, actor, farmID, ref string, in WeanInput) (Result, error) {
	var (
		result Result
		move   housing.Move
	)
	err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		farm, err := farms.Authorize(ctx, tx, actor, farmID)
		if err != nil {
			return err
		}
		animal, err := ResolveAnimal(ctx, tx, farmID, ref)
		if err != nil {
			return err
		}
		if err := rules.Transition(animal.Status, models.StatusWeaned); err != nil {
			return err
		}
		date, err := models.ParseEventDay(in.Date, s.now().In(farm.Location()))
		if err != nil {
			return err
		}
		animal.Status = models.StatusWeaned
		animal.StatusDate = &date
		animal.UpdatedAt = s.now().UTC()

		if in.HousingID == "" {
			result.Animal = animal
			return tx.PutAnimal(ctx, animal)
		}
		unit, err := housing.FindUnit(ctx, tx, farmID, in.HousingID)
		if err != nil {
			return err
		}
		move, err = housing.Assign(ctx, tx, farm, animal, unit.ID, models.PurposeWeaning, "", s.now().UTC())
		if err != nil {
			return err
		}
		if !move.Changed {
			if err := tx.PutAnimal(ctx, animal); err != nil {
				return err
			}
			move.Animal = animal
		}
		result.Animal = move.Animal
		result.Warnings = move.Warnings
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if in.HousingID != "" {
		s.housing.Observe(farmID, move)
	}
	s.logger.Info("animal weaned", zap.String("farm_id", farmID), zap.String("tag", result.Animal.Tag))
	return result, nil
}

// RecordMedical stores a health event. A positive cost is booked as a Medical expense.
func (s *Service) RecordMedical(ctx context.Context, actor, farmID, ref string, in MedicalInput) (Result, error) {
	if !in.Kind.Valid() {
		return Result{}, models.Validationf("unknown medical kind %q", in.Kind)
	}
	if strings.TrimSpace(in.Description) == "" {
		return Result{}, models.Validationf("description is required")
	}
	if in.Cost < 0 {
		return Result{}, models.Validationf("cost must not be negative")
	}

	var (
		farm   models.Farm
		result Result
	)
	err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		var err error
		farm, err = farms.Authorize(ctx, tx, actor, farmID)
		if err != nil {
			return err
		}
		animal, err := ResolveAnimal(ctx, tx, farmID, ref)
		if err != nil {
			return err
		}
		if animal.Status.Terminal() {
			return models.Validationf("animal %s is %s", animal.Tag, animal.Status)
		}
		date, err := models.ParseEventDay(in.Date, s.now().In(farm.Location()))
		if err != nil {
			return err
		}
		now := s.now().UTC()
		record := models.MedicalRecord{
			ID:          uuid.NewString(),
			FarmID:      farmID,
			AnimalID:    animal.ID,
			AnimalTag:   animal.Tag,
			Date:        date,
			Kind:        in.Kind,
			Description: strings.TrimSpace(in.Description),
			Medication:  in.Medication,
			Cost:        in.Cost,
			CreatedAt:   now,
		}
		if in.Cost > 0 {
			txn, err := finance.NewTransaction(farmID, models.TransactionExpense, models.CategoryMedical, in.Cost, date, now)
			if err != nil {
				return err
			}
			txn.ReferenceKind = models.ReferenceMedical
			txn.ReferenceIDs = []string{animal.ID}
			txn.ReferenceTags = []string{animal.Tag}
			txn.Note = record.Description
			if err := tx.PutTransaction(ctx, txn); err != nil {
				return err
			}
			record.TransactionID = txn.ID
			result.Transaction = &txn
		}
		if err := tx.PutMedicalRecord(ctx, record); err != nil {
			return err
		}
		result.Animal = animal
		result.Medical = &record
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if result.Transaction != nil {
		s.finance.Publish(ctx, farm, *result.Transaction)
	}
	return result, nil
}

// MedicalHistory lists the health records of one animal.
func (s *Service) MedicalHistory(ctx context.Context, actor, farmID, ref string) ([]models.MedicalRecord, error) {
	var records []models.MedicalRecord
	err := s.store.View(ctx, func(v repository.View) error {
		if _, err := farms.Authorize(ctx, v, actor, farmID); err != nil {
			return err
		}
		animal, err := ResolveAnimal(ctx, v, farmID, ref)
		if err != nil {
			return err
		}
		records, err = v.ListMedicalRecords(ctx, farmID, animal.ID)
		return err
	})
	return records, err
}

// RecordDeath marks an animal deceased and releases its housing as of the date of death.
// A processed animal sold to a buyer books one Sale income.
func (s *Service) RecordDeath(ctx context.Context, actor, farmID, ref string, in DeathInput) (Result, error) {
	var status models.AnimalStatus
	switch strings.ToLower(strings.TrimSpace(in.Cause)) {
	case CauseNatural:
		status = models.StatusDeceasedNatural
	case CauseProcessed:
		status = models.StatusDeceasedProcessed
	default:
		return Result{}, models.Validationf("cause must be natural or processed, got %q", in.Cause)
	}
	if in.Amount < 0 {
		return Result{}, models.Validationf("amount must not be negative")
	}
	if in.Amount > 0 && status != models.StatusDeceasedProcessed {
		return Result{}, models.Validationf("only processed animals can be sold")
	}
	if in.Amount > 0 && strings.TrimSpace(in.Buyer) == "" {
		return Result{}, models.Validationf("buyer is required when an amount is given")
	}

	var (
		farm   models.Farm
		result Result
		move   housing.Move
	)
	err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		var err error
		farm, err = farms.Authorize(ctx, tx, actor, farmID)
		if err != nil {
			return err
		}
		animal, err := ResolveAnimal(ctx, tx, farmID, ref)
		if err != nil {
			return err
		}
		if err := rules.Transition(animal.Status, status); err != nil {
			return err
		}
		date, err := models.ParseEventDay(in.Date, s.now().In(farm.Location()))
		if err != nil {
			return err
		}

		animal.Status = status
		animal.StatusDate = &date
		animal.StatusNote = in.Note
		move, err = housing.Release(ctx, tx, animal, date)
		if err != nil {
			return err
		}
		result.Animal = move.Animal
		if _, err := CloseMatings(ctx, tx, animal, s.now().UTC()); err != nil {
			return err
		}

		if in.Amount > 0 {
			txn, err := finance.NewTransaction(farmID, models.TransactionIncome, models.CategorySale, in.Amount, date, s.now().UTC())
			if err != nil {
				return err
			}
			txn.ReferenceKind = models.ReferenceMortality
			txn.ReferenceIDs = []string{animal.ID}
			txn.ReferenceTags = []string{animal.Tag}
			txn.Counterparty = strings.TrimSpace(in.Buyer)
			txn.Note = in.Note
			if err := tx.PutTransaction(ctx, txn); err != nil {
				return err
			}
			result.Transaction = &txn
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.housing.Observe(farmID, move)
	s.logger.Info("death recorded",
		zap.String("farm_id", farmID),
		zap.String("tag", result.Animal.Tag),
		zap.String("status", string(status)),
	)
	if result.Transaction != nil {
		s.finance.Publish(ctx, farm, *result.Transaction)
	}
	return result, nil
}

// SellAnimals marks every referenced animal Sold, releases their housing and books one
// aggregate Sale income. Any ineligible animal aborts the whole sale.
func (s *Service) SellAnimals(ctx context.Context, actor, farmID string, in SaleInput) (SaleResult, error) {
	if len(in.Animals) == 0 {
		return SaleResult{}, models.Validationf("at least one animal is required")
	}
	if in.Amount <= 0 {
		return SaleResult{}, models.Validationf("sale amount must be greater than zero")
	}

	var (
		farm   models.Farm
		result SaleResult
		moves  []housing.Move
	)
	err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		var err error
		farm, err = farms.Authorize(ctx, tx, actor, farmID)
		if err != nil {
			return err
		}
		date, err := models.ParseEventDay(in.Date, s.now().In(farm.Location()))
		if err != nil {
			return err
		}

		seen := make(map[string]bool, len(in.Animals))
		var ids, tags []string
		for _, ref := range in.Animals {
			animal, err := ResolveAnimal(ctx, tx, farmID, ref)
			if err != nil {
				return err
			}
			if seen[animal.ID] {
				return models.Validationf("animal %s is listed twice", animal.Tag)
			}
			seen[animal.ID] = true
			if err := rules.Transition(animal.Status, models.StatusSold); err != nil {
				return fmt.Errorf("animal %s: %w", animal.Tag, err)
			}

			animal.Status = models.StatusSold
			animal.StatusDate = &date
			animal.StatusNote = in.Note
			move, err := housing.Release(ctx, tx, animal, date)
			if err != nil {
				return err
			}
			if _, err := CloseMatings(ctx, tx, animal, s.now().UTC()); err != nil {
				return err
			}
			moves = append(moves, move)
			result.Animals = append(result.Animals, move.Animal)
			ids = append(ids, animal.ID)
			tags = append(tags, animal.Tag)
		}

		txn, err := finance.NewTransaction(farmID, models.TransactionIncome, models.CategorySale, in.Amount, date, s.now().UTC())
		if err != nil {
			return err
		}
		txn.ReferenceKind = models.ReferenceSale
		txn.ReferenceIDs = ids
		txn.ReferenceTags = tags
		txn.Counterparty = strings.TrimSpace(in.Buyer)
		txn.Note = in.Note
		result.Transaction = txn
		return tx.PutTransaction(ctx, txn)
	})
	if err != nil {
		return SaleResult{}, err
	}

	for _, m := range moves {
		s.housing.Observe(farmID, m)
	}
	s.logger.Info("sale recorded",
		zap.String("farm_id", farmID),
		zap.Strings("tags", result.Transaction.ReferenceTags),
		zap.Float64("amount", in.Amount),
		zap.String("buyer", result.Transaction.Counterparty),
	)
	s.finance.Publish(ctx, farm, result.Transaction)
	return result, nil
}
