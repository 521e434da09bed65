package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/gaming-portal/config"
	"github.com/yeremiapane/gaming-portal/models"
	"github.com/yeremiapane/gaming-portal/repository"
	"github.com/yeremiapane/gaming-portal/utils"
)

type SweepName string

const (
	SweepOverdue          SweepName = "overdue"
	SweepDueSoon          SweepName = "due-soon"
	SweepRecurringOverdue SweepName = "recurring-overdue"
)

// Reminder titles double as the reminder kind in dedup lookups.
const (
	TitleLoanOverdue         = "Loan overdue"
	TitleLoanDueSoon         = "Loan payment due soon"
	TitleLoanOverdueReminder = "Loan overdue reminder"
)

// ErrSweepRunning is returned by RunNow when the sweep is already in progress.
var ErrSweepRunning = errors.New("sweep already running")

type SweepReport struct {
	Sweep     SweepName `json:"sweep"`
	StartedAt time.Time `json:"started_at"`
	Scanned   int       `json:"scanned"`
	Notified  int       `json:"notified"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
}

func (r *SweepReport) add(notified bool, err error) {
	switch {
	case err != nil:
		r.Failed++
	case notified:
		r.Notified++
	default:
		r.Skipped++
	}
}

// ReminderScheduler runs the loan reminder sweeps. Each sweep is idempotent
// through a dedup query or a state transition, so an overlapping or repeated
// run never notifies twice.
type ReminderScheduler struct {
	loans  repository.LoanStore
	users  repository.UserStore
	ledger *NotificationLedger
	mailer EmailTransport
	locker RunLocker
	cfg    config.ReminderConfig

	cron *cron.Cron
	Now  func() time.Time
}

func NewReminderScheduler(loans repository.LoanStore, users repository.UserStore, ledger *NotificationLedger, mailer EmailTransport, locker RunLocker, cfg config.ReminderConfig) *ReminderScheduler {
	if mailer == nil {
		mailer = LogMailer{}
	}
	if locker == nil {
		locker = NewLocalRunLocker()
	}
	logger := cron.PrintfLogger(utils.InfoLogger)
	return &ReminderScheduler{
		loans:  loans,
		users:  users,
		ledger: ledger,
		mailer: mailer,
		locker: locker,
		cfg:    cfg,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		Now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReminderScheduler) interval(name SweepName) time.Duration {
	switch name {
	case SweepOverdue:
		return s.cfg.OverdueInterval
	case SweepDueSoon:
		return s.cfg.DueSoonInterval
	case SweepRecurringOverdue:
		return s.cfg.RecurringInterval
	}
	return 0
}

// Start schedules every sweep on its interval.
func (s *ReminderScheduler) Start() error {
	for _, name := range []SweepName{SweepOverdue, SweepDueSoon, SweepRecurringOverdue} {
		name := name
		every := s.interval(name)
		if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", every), func() { s.scheduled(name) }); err != nil {
			return fmt.Errorf("schedule %s sweep: %w", name, err)
		}
		utils.InfoLogger.Infof("Scheduled %s sweep every %s", name, every)
	}
	s.cron.Start()
	return nil
}

// Stop prevents new runs and waits for running ones.
func (s *ReminderScheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *ReminderScheduler) scheduled(name SweepName) {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval(name))
	defer cancel()

	report, err := s.RunNow(ctx, name)
	if errors.Is(err, ErrSweepRunning) {
		utils.InfoLogger.Infof("Skipping %s sweep, previous run still active", name)
		return
	}
	if err != nil {
		utils.ErrorLogger.Errorf("Sweep %s skipped: %v", name, err)
		return
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"sweep":    report.Sweep,
		"scanned":  report.Scanned,
		"notified": report.Notified,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
	}).Info("Sweep finished")
}

// RunNow runs one sweep immediately, holding its run lock.
func (s *ReminderScheduler) RunNow(ctx context.Context, name SweepName) (report *SweepReport, err error) {
	every := s.interval(name)
	if every <= 0 {
		return nil, fmt.Errorf("%w: unknown sweep %q", ErrValidation, name)
	}

	release, ok, err := s.locker.TryLock(ctx, string(name), every)
	if err != nil {
		return nil, fmt.Errorf("acquire %s lock: %w", name, err)
	}
	if !ok {
		return nil, ErrSweepRunning
	}
	defer release()

	defer func() {
		if r := recover(); r != nil {
			report, err = nil, fmt.Errorf("sweep %s panicked: %v", name, r)
		}
	}()

	switch name {
	case SweepOverdue:
		return s.SweepOverdue(ctx)
	case SweepDueSoon:
		return s.SweepDueSoon(ctx)
	default:
		return s.SweepRecurringOverdue(ctx)
	}
}

// SweepOverdue moves past-due ACTIVE loans to OVERDUE. Only the run that wins
// the transition notifies, so each loan is announced once.
func (s *ReminderScheduler) SweepOverdue(ctx context.Context) (*SweepReport, error) {
	now := s.Now()
	report := &SweepReport{Sweep: SweepOverdue, StartedAt: now}

	loans, err := s.loans.FindActivePastDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	report.Scanned = len(loans)

	for _, loan := range loans {
		notified, err := s.markOverdue(ctx, loan, now)
		report.add(notified, err)
		s.logRecord(SweepOverdue, loan, err)
	}
	return report, nil
}

func (s *ReminderScheduler) markOverdue(ctx context.Context, loan models.Loan, now time.Time) (bool, error) {
	won, err := s.loans.MarkOverdue(ctx, loan.ID, now)
	if err != nil || !won {
		return false, err
	}
	body := fmt.Sprintf("Your loan #%d of %.2f was due on %s and is now overdue.", loan.ID, loan.Amount, loan.DueAt.Format("2006-01-02 15:04 MST"))
	return true, s.remind(ctx, loan, TitleLoanOverdue, body, models.NotificationError)
}

// SweepDueSoon reminds about ACTIVE loans due within the lookahead. A loan is
// reminded at most once per sweep interval.
func (s *ReminderScheduler) SweepDueSoon(ctx context.Context) (*SweepReport, error) {
	now := s.Now()
	report := &SweepReport{Sweep: SweepDueSoon, StartedAt: now}

	loans, err := s.loans.FindActiveDueBetween(ctx, now, now.Add(s.cfg.DueSoonLookahead))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	report.Scanned = len(loans)

	since := now.Add(-s.cfg.DueSoonInterval)
	for _, loan := range loans {
		notified, err := s.remindOnce(ctx, loan, since, TitleLoanDueSoon,
			fmt.Sprintf("Your loan #%d of %.2f is due on %s.", loan.ID, loan.Amount, loan.DueAt.Format("2006-01-02 15:04 MST")),
			models.NotificationWarning)
		report.add(notified, err)
		s.logRecord(SweepDueSoon, loan, err)
	}
	return report, nil
}

// SweepRecurringOverdue keeps reminding about OVERDUE loans once per interval
// until they are repaid.
func (s *ReminderScheduler) SweepRecurringOverdue(ctx context.Context) (*SweepReport, error) {
	now := s.Now()
	report := &SweepReport{Sweep: SweepRecurringOverdue, StartedAt: now}

	loans, err := s.loans.FindOverdue(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	report.Scanned = len(loans)

	since := now.Add(-s.cfg.RecurringInterval)
	for _, loan := range loans {
		notified, err := s.remindOverdue(ctx, loan, since)
		report.add(notified, err)
		s.logRecord(SweepRecurringOverdue, loan, err)
	}
	return report, nil
}

func (s *ReminderScheduler) remindOverdue(ctx context.Context, loan models.Loan, since time.Time) (bool, error) {
	// a fresh "Loan overdue" notice covers this window too
	announced, err := s.ledger.ExistsSince(ctx, loanKey(loan, TitleLoanOverdue), since)
	if err != nil || announced {
		return false, err
	}
	return s.remindOnce(ctx, loan, since, TitleLoanOverdueReminder,
		fmt.Sprintf("Your loan #%d of %.2f is still overdue since %s.", loan.ID, loan.Amount, loan.DueAt.Format("2006-01-02")),
		models.NotificationError)
}

func loanKey(loan models.Loan, title string) repository.DedupKey {
	return repository.DedupKey{UserID: loan.UserID, Title: title, SourceType: models.SourceLoan, SourceID: loan.ID}
}

// remindOnce notifies unless the same reminder exists since the window start.
func (s *ReminderScheduler) remindOnce(ctx context.Context, loan models.Loan, since time.Time, title, body string, kind models.NotificationKind) (bool, error) {
	exists, err := s.ledger.ExistsSince(ctx, loanKey(loan, title), since)
	if err != nil || exists {
		return false, err
	}
	return true, s.remind(ctx, loan, title, body, kind)
}

// remind writes the notification, then emails. Email failures are logged only;
// the notification already stands.
func (s *ReminderScheduler) remind(ctx context.Context, loan models.Loan, title, body string, kind models.NotificationKind) error {
	if _, err := s.ledger.Create(ctx, NewNotification{
		UserID:     loan.UserID,
		Title:      title,
		Body:       body,
		Kind:       kind,
		Link:       fmt.Sprintf("/loans/%d", loan.ID),
		SourceType: models.SourceLoan,
		SourceID:   loan.ID,
	}); err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, loan.UserID)
	if err != nil {
		utils.ErrorLogger.Warnf("No email for loan %d, user %d lookup failed: %v", loan.ID, loan.UserID, err)
		return nil
	}
	if err := s.mailer.Send(ctx, user.Email, title, renderReminderEmail(user.Name, title, body)); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"loan_id": loan.ID,
			"user_id": loan.UserID,
		}).Warnf("Reminder email failed: %v", err)
	}
	return nil
}

func (s *ReminderScheduler) logRecord(name SweepName, loan models.Loan, err error) {
	if err == nil {
		return
	}
	utils.ErrorLogger.WithFields(logrus.Fields{
		"sweep":   name,
		"loan_id": loan.ID,
		"user_id": loan.UserID,
	}).Warnf("Reminder failed, continuing: %v", err)
}

func renderReminderEmail(name, title, body string) string {
	return fmt.Sprintf("<p>Hi %s,</p><h3>%s</h3><p>%s</p>",
		html.EscapeString(name), html.EscapeString(title), html.EscapeString(body))
}
