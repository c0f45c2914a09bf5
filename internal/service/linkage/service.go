package linkage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/emahelps/sms-hub/internal/feed"
	"github.com/emahelps/sms-hub/internal/model"
	"github.com/emahelps/sms-hub/internal/phone"
	"github.com/emahelps/sms-hub/internal/repository"
	"github.com/emahelps/sms-hub/internal/util"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const WelcomeTopic = "smshub.welcome"

var ErrNotFound = errors.New("linkage: volunteer or registration not found")

// Service keeps entity records and their conversation mirrors in
// lockstep. Registration writes the entity plus a best-effort
// conversation upsert in one transaction; match/unmatch applies all
// four writes (volunteer side, family side, both conversation rows)
// atomically — the admin UI cannot detect a half-applied match, so a
// half-applied match must be impossible.
type Service struct {
	regs   repository.RegistrationsRepository
	vols   repository.VolunteersRepository
	asgs   repository.AssignmentsRepository
	convs  repository.ConversationsRepository
	cons   repository.ContactsRepository
	outbox repository.OutboxRepository
	events feed.Publisher
	log    *zap.Logger

	inTx func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func New(
	db *sqlx.DB,
	regs repository.RegistrationsRepository,
	vols repository.VolunteersRepository,
	asgs repository.AssignmentsRepository,
	convs repository.ConversationsRepository,
	cons repository.ContactsRepository,
	outbox repository.OutboxRepository,
	events feed.Publisher,
	log *zap.Logger,
) *Service {
	return &Service{
		regs:   regs,
		vols:   vols,
		asgs:   asgs,
		convs:  convs,
		cons:   cons,
		outbox: outbox,
		events: events,
		log:    log,
		inTx: func(ctx context.Context, fn func(*sqlx.Tx) error) error {
			tx, err := db.BeginTxx(ctx, nil)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback() }()
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit()
		},
	}
}

// RegisterFamily stores a family intake and seeds its conversation.
// Registration succeeds even when the phone never canonicalizes —
// messaging linkage is best-effort, never a precondition.
func (s *Service) RegisterFamily(ctx context.Context, reg model.Registration) (model.Registration, error) {
	reg.ID = util.NewID()
	reg.Status = "new"

	key, perr := phone.Canonicalize(reg.Phone)
	if perr == nil {
		reg.Phone = key
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.regs.Insert(ctx, tx, reg); err != nil {
			return fmt.Errorf("insert registration: %w", err)
		}
		if perr != nil {
			s.log.Warn("registration without usable phone, skipping conversation",
				zap.String("registration_id", reg.ID), zap.Error(perr))
			return nil
		}
		ct := model.ContactTypeFamily
		if err := s.convs.Upsert(ctx, tx, key, model.ConversationPatch{
			ContactName:    &reg.MotherName,
			ContactType:    &ct,
			RegistrationID: &reg.ID,
		}); err != nil {
			return fmt.Errorf("upsert conversation: %w", err)
		}
		return s.enqueueWelcome(ctx, tx, model.WelcomeEvent{
			Kind: model.ContactTypeFamily, ID: reg.ID, Name: reg.MotherName, Phone: key,
		})
	})
	if err != nil {
		return model.Registration{}, err
	}

	if perr == nil {
		s.publish(key)
	}
	return reg, nil
}

// RegisterVolunteer mirrors RegisterFamily for volunteer signups.
func (s *Service) RegisterVolunteer(ctx context.Context, v model.Volunteer) (model.Volunteer, error) {
	v.ID = util.NewID()
	v.Status = "new"

	key, perr := phone.Canonicalize(v.Phone)
	if perr == nil {
		v.Phone = key
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.vols.Insert(ctx, tx, v); err != nil {
			return fmt.Errorf("insert volunteer: %w", err)
		}
		if perr != nil {
			s.log.Warn("volunteer signup without usable phone, skipping conversation",
				zap.String("volunteer_id", v.ID), zap.Error(perr))
			return nil
		}
		ct := model.ContactTypeVolunteer
		if err := s.convs.Upsert(ctx, tx, key, model.ConversationPatch{
			ContactName: &v.Name,
			ContactType: &ct,
			VolunteerID: &v.ID,
		}); err != nil {
			return fmt.Errorf("upsert conversation: %w", err)
		}
		return s.enqueueWelcome(ctx, tx, model.WelcomeEvent{
			Kind: model.ContactTypeVolunteer, ID: v.ID, Name: v.Name, Phone: key,
		})
	})
	if err != nil {
		return model.Volunteer{}, err
	}

	if perr == nil {
		s.publish(key)
	}
	return v, nil
}

// RegisterContact stores a generic contact-form submission. Contact
// intakes get a conversation row but no welcome SMS.
func (s *Service) RegisterContact(ctx context.Context, c model.Contact) (model.Contact, error) {
	c.ID = util.NewID()

	key, perr := phone.Canonicalize(c.Phone)
	if perr == nil {
		c.Phone = key
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.cons.Insert(ctx, tx, c); err != nil {
			return fmt.Errorf("insert contact: %w", err)
		}
		if perr != nil {
			return nil
		}
		ct := model.ContactTypeContact
		return s.convs.Upsert(ctx, tx, key, model.ConversationPatch{
			ContactName: &c.Name,
			ContactType: &ct,
		})
	})
	if err != nil {
		return model.Contact{}, err
	}

	if perr == nil {
		s.publish(key)
	}
	return c, nil
}

// Match links a volunteer to a family. Four writes, one transaction:
// assignment row, registration's assigned-volunteer fields, the
// volunteer conversation's family-list mirror, and the family
// conversation's volunteer mirror.
func (s *Service) Match(ctx context.Context, volunteerID, registrationID string) error {
	var vPhone, rPhone string

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		v, err := s.vols.GetForUpdate(ctx, tx, volunteerID)
		if err != nil {
			return err
		}
		r, err := s.regs.GetForUpdate(ctx, tx, registrationID)
		if err != nil {
			return err
		}
		if v == nil || r == nil {
			return ErrNotFound
		}

		if err := s.asgs.Insert(ctx, tx, model.Assignment{
			VolunteerID:    v.ID,
			RegistrationID: r.ID,
			VolunteerName:  v.Name,
			FamilyName:     r.MotherName,
		}); err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}

		if err := s.regs.SetAssignedVolunteer(ctx, tx, r.ID, v.ID, v.Name); err != nil {
			return fmt.Errorf("set assigned volunteer: %w", err)
		}

		if key, err := phone.Canonicalize(v.Phone); err == nil {
			vPhone = key
			if err := s.syncVolunteerFamilies(ctx, tx, key, v.ID); err != nil {
				return err
			}
		}

		if key, err := phone.Canonicalize(r.Phone); err == nil {
			rPhone = key
			ct := model.ContactTypeFamily
			if err := s.convs.Upsert(ctx, tx, key, model.ConversationPatch{
				ContactType:           &ct,
				RegistrationID:        &r.ID,
				AssignedVolunteerID:   &v.ID,
				AssignedVolunteerName: &v.Name,
			}); err != nil {
				return fmt.Errorf("upsert family conversation: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.publish(vPhone)
	s.publish(rPhone)
	return nil
}

// Unmatch removes a link and its mirrors. Running it after Match
// leaves both entities and both conversation rows with no reference
// to the other party.
func (s *Service) Unmatch(ctx context.Context, volunteerID, registrationID string) error {
	var vPhone, rPhone string

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		v, err := s.vols.GetForUpdate(ctx, tx, volunteerID)
		if err != nil {
			return err
		}
		r, err := s.regs.GetForUpdate(ctx, tx, registrationID)
		if err != nil {
			return err
		}
		if v == nil || r == nil {
			return ErrNotFound
		}

		if err := s.asgs.Delete(ctx, tx, v.ID, r.ID); err != nil {
			return fmt.Errorf("delete assignment: %w", err)
		}

		// Clear only when the family still points at this volunteer;
		// a later re-assignment must survive an old unmatch.
		if r.AssignedVolunteerID != nil && *r.AssignedVolunteerID == v.ID {
			if err := s.regs.ClearAssignedVolunteer(ctx, tx, r.ID); err != nil {
				return fmt.Errorf("clear assigned volunteer: %w", err)
			}
			if key, err := phone.Canonicalize(r.Phone); err == nil {
				rPhone = key
				if err := s.convs.ClearAssignedVolunteer(ctx, tx, key); err != nil {
					return fmt.Errorf("clear family conversation: %w", err)
				}
			}
		}

		if key, err := phone.Canonicalize(v.Phone); err == nil {
			vPhone = key
			if err := s.syncVolunteerFamilies(ctx, tx, key, v.ID); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.publish(vPhone)
	s.publish(rPhone)
	return nil
}

// syncVolunteerFamilies rewrites the assigned_families JSON mirror
// from the assignments table, inside the same transaction that
// changed it.
func (s *Service) syncVolunteerFamilies(ctx context.Context, tx *sqlx.Tx, key, volunteerID string) error {
	list, err := s.asgs.ListByVolunteer(ctx, tx, volunteerID)
	if err != nil {
		return fmt.Errorf("list assignments: %w", err)
	}
	refs := make([]model.FamilyRef, 0, len(list))
	for _, a := range list {
		refs = append(refs, model.FamilyRef{
			RegistrationID: a.RegistrationID,
			FamilyName:     a.FamilyName,
		})
	}
	raw, err := json.Marshal(refs)
	if err != nil {
		return err
	}
	families := string(raw)
	ct := model.ContactTypeVolunteer
	if err := s.convs.Upsert(ctx, tx, key, model.ConversationPatch{
		ContactType:      &ct,
		VolunteerID:      &volunteerID,
		AssignedFamilies: &families,
	}); err != nil {
		return fmt.Errorf("upsert volunteer conversation: %w", err)
	}
	return nil
}

func (s *Service) enqueueWelcome(ctx context.Context, tx *sqlx.Tx, ev model.WelcomeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := s.outbox.Insert(ctx, tx, "registration", ev.ID, WelcomeTopic, payload); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

func (s *Service) publish(key string) {
	if s.events == nil || key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.events.Publish(ctx, feed.Event{Kind: feed.EventConversation, Phone: key}); err != nil {
		s.log.Warn("change event publish failed", zap.Error(err))
	}
}
