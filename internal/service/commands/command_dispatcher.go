package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/service/breeding"
	"github.com/mamadbah2/rabbitry/internal/service/herd"
	"github.com/mamadbah2/rabbitry/internal/service/housing"
	"github.com/mamadbah2/rabbitry/internal/service/reporting"
)

// ErrInvalidArguments indicates the command payload could not be parsed.
var ErrInvalidArguments = errors.New("invalid command arguments")

// HelpText lists the supported chat commands.
const HelpText = `Commands:
/move TAG HUTCH [purpose]
/sell TAG[,TAG...] AMOUNT [buyer]
/death TAG natural|processed [note]
/mate DOE BUCK [YYYY-MM-DD]
/summary`

var usage = map[models.CommandType]string{
	models.CommandMove:  "Usage: /move TAG HUTCH [purpose]",
	models.CommandSell:  "Usage: /sell TAG[,TAG...] AMOUNT [buyer]",
	models.CommandDeath: "Usage: /death TAG natural|processed [note]",
	models.CommandMate:  "Usage: /mate DOE BUCK [YYYY-MM-DD]",
}

// HerdAdapter is the part of the herd service the dispatcher drives.
type HerdAdapter interface {
	SellAnimals(ctx context.Context, actor, farmID string, in herd.SaleInput) (herd.SaleResult, error)
	RecordDeath(ctx context.Context, actor, farmID, ref string, in herd.DeathInput) (herd.Result, error)
	Get(ctx context.Context, actor, farmID, ref string) (models.Animal, error)
}

// HousingAdapter moves animals.
type HousingAdapter interface {
	AssignAnimal(ctx context.Context, actor, farmID, animalID string, in housing.AssignInput) (housing.Move, error)
}

// BreedingAdapter records matings.
type BreedingAdapter interface {
	RecordMating(ctx context.Context, actor, farmID string, in breeding.MatingInput) (breeding.MatingResult, error)
}

// ReportingAdapter defines the reporting functions required by the dispatcher.
type ReportingAdapter interface {
	Summary(ctx context.Context, actor, farmID string) (models.FarmSummary, error)
}

// Service turns parsed chat commands into service calls and renders a reply.
type Service struct {
	herd      HerdAdapter
	housing   HousingAdapter
	breeding  BreedingAdapter
	reporting ReportingAdapter
	logger    *zap.Logger
}

// NewService constructs a command dispatcher.
func NewService(herdSvc HerdAdapter, housingSvc HousingAdapter, breedingSvc BreedingAdapter, reportingSvc ReportingAdapter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		herd:      herdSvc,
		housing:   housingSvc,
		breeding:  breedingSvc,
		reporting: reportingSvc,
		logger:    logger,
	}
}

// HandleCommand executes cmd on farmID as actor and returns the reply text.
// Domain errors are turned into replies; only unexpected failures are returned.
func (s *Service) HandleCommand(ctx context.Context, actor, farmID string, cmd models.Command) (string, error) {
	s.logger.Debug("dispatching command", zap.String("command", string(cmd.Type)), zap.String("actor", actor), zap.Strings("args", cmd.Args))

	reply, err := s.dispatch(ctx, actor, farmID, cmd)
	switch {
	case err == nil:
		return reply, nil
	case errors.Is(err, ErrInvalidArguments):
		return usage[cmd.Type], nil
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrPermissionDenied):
		return "Not done: " + err.Error(), nil
	default:
		return "", err
	}
}

func (s *Service) dispatch(ctx context.Context, actor, farmID string, cmd models.Command) (string, error) {
	switch cmd.Type {
	case models.CommandMove:
		return s.move(ctx, actor, farmID, cmd.Args)
	case models.CommandSell:
		return s.sell(ctx, actor, farmID, cmd.Args)
	case models.CommandDeath:
		return s.death(ctx, actor, farmID, cmd.Args)
	case models.CommandMate:
		return s.mate(ctx, actor, farmID, cmd.Args)
	case models.CommandSummary:
		summary, err := s.reporting.Summary(ctx, actor, farmID)
		if err != nil {
			return "", err
		}
		return reporting.SummaryText(summary), nil
	default:
		return HelpText, nil
	}
}

func (s *Service) move(ctx context.Context, actor, farmID string, args []string) (string, error) {
	if len(args) < 2 {
		return "", ErrInvalidArguments
	}
	in := housing.AssignInput{HousingID: args[1]}
	if len(args) > 2 {
		purpose, ok := parsePurpose(args[2])
		if !ok {
			return "", ErrInvalidArguments
		}
		in.Purpose = purpose
		in.Notes = strings.Join(args[3:], " ")
	}
	animal, err := s.herd.Get(ctx, actor, farmID, args[0])
	if err != nil {
		return "", err
	}

	move, err := s.housing.AssignAnimal(ctx, actor, farmID, animal.ID, in)
	if err != nil {
		return "", err
	}
	if !move.Changed {
		return fmt.Sprintf("%s is already in %s.", animal.Tag, args[1]), nil
	}
	reply := fmt.Sprintf("%s moved to %s (%d/%d).", animal.Tag, move.Target.Label, move.Target.Occupancy, move.Target.Capacity)
	return withWarnings(reply, move.Warnings), nil
}

func (s *Service) sell(ctx context.Context, actor, farmID string, args []string) (string, error) {
	if len(args) < 2 {
		return "", ErrInvalidArguments
	}
	var refs []string
	for _, ref := range strings.Split(args[0], ",") {
		if ref = strings.TrimSpace(ref); ref != "" {
			refs = append(refs, ref)
		}
	}
	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil || len(refs) == 0 {
		return "", ErrInvalidArguments
	}

	sale, err := s.herd.SellAnimals(ctx, actor, farmID, herd.SaleInput{Animals: refs, Amount: amount, Buyer: strings.Join(args[2:], " ")})
	if err != nil {
		return "", err
	}
	reply := fmt.Sprintf("Sold %s for %.2f.", strings.Join(sale.Transaction.ReferenceTags, ", "), sale.Transaction.Amount)
	if sale.Transaction.Counterparty != "" {
		reply = fmt.Sprintf("Sold %s to %s for %.2f.", strings.Join(sale.Transaction.ReferenceTags, ", "), sale.Transaction.Counterparty, sale.Transaction.Amount)
	}
	return reply, nil
}

func (s *Service) death(ctx context.Context, actor, farmID string, args []string) (string, error) {
	if len(args) < 2 {
		return "", ErrInvalidArguments
	}
	cause := strings.ToLower(args[1])
	if cause != herd.CauseNatural && cause != herd.CauseProcessed {
		return "", ErrInvalidArguments
	}
	res, err := s.herd.RecordDeath(ctx, actor, farmID, args[0], herd.DeathInput{Cause: cause, Note: strings.Join(args[2:], " ")})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s recorded as %s.", res.Animal.Tag, res.Animal.Status), nil
}

func (s *Service) mate(ctx context.Context, actor, farmID string, args []string) (string, error) {
	if len(args) < 2 {
		return "", ErrInvalidArguments
	}
	in := breeding.MatingInput{Doe: args[0], Buck: args[1]}
	if len(args) > 2 {
		in.Date = args[2]
	}
	res, err := s.breeding.RecordMating(ctx, actor, farmID, in)
	if err != nil {
		return "", err
	}
	reply := fmt.Sprintf("Mating %s x %s saved. Palpate on %s, kindling due %s.",
		res.Record.DoeTag, res.Record.BuckTag,
		res.Record.ExpectedPalpationDate.Format(models.DateLayout),
		res.Record.ExpectedDeliveryDate.Format(models.DateLayout))
	return withWarnings(reply, res.Warnings), nil
}

func parsePurpose(value string) (models.AssignmentPurpose, bool) {
	for _, p := range []models.AssignmentPurpose{models.PurposeHousing, models.PurposeMating, models.PurposeQuarantine, models.PurposeWeaning, models.PurposeRecovery} {
		if strings.EqualFold(string(p), value) {
			return p, true
		}
	}
	return "", false
}

func withWarnings(reply string, warnings []models.Warning) string {
	for _, w := range warnings {
		reply += "\nWarning: " + w.Message
	}
	return reply
}
