package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"crm-pipeline-api/internal/client"
	"crm-pipeline-api/internal/domain"
	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/repository"
)

// testEnv wires every service over an in-memory SQLite database
type testEnv struct {
	db        *gorm.DB
	actor     uuid.UUID
	s3        *client.MockS3Client
	publisher *recordingPublisher
	notifier  *recordingNotifier

	dealRepo     repository.DealRepository
	clientRepo   repository.ClientRepository
	fileRepo     repository.DealFileRepository
	scheduleRepo repository.ScheduleRepository
	commentRepo  repository.CommentRepository
	activityRepo repository.ActivityRepository
	userRepo     repository.UserRepository
	tx           repository.Transactor

	activity  ActivityService
	pipeline  PipelineService
	deals     DealService
	files     FileService
	schedules ScheduleService
	comments  CommentService
	clients   ClientService
	export    ExportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&domain.User{},
		&domain.Client{},
		&domain.Deal{},
		&domain.DealFile{},
		&domain.DealActivity{},
		&domain.DealSchedule{},
		&domain.DealComment{},
	))

	log := zap.NewNop()
	env := &testEnv{
		db:           db,
		actor:        uuid.New(),
		s3:           client.NewMockS3Client(),
		publisher:    &recordingPublisher{},
		notifier:     &recordingNotifier{},
		dealRepo:     repository.NewDealRepository(db),
		clientRepo:   repository.NewClientRepository(db),
		fileRepo:     repository.NewDealFileRepository(db),
		scheduleRepo: repository.NewScheduleRepository(db),
		commentRepo:  repository.NewCommentRepository(db),
		activityRepo: repository.NewActivityRepository(db),
	}
	env.tx = repository.NewTransactor(db)
	env.userRepo = repository.NewUserRepository(db)
	tx := env.tx

	env.activity = NewActivityService(env.activityRepo, env.dealRepo, log)
	env.pipeline = NewPipelineService(env.dealRepo, env.activity, tx, nil, env.publisher, nil, log)
	env.deals = NewDealService(env.dealRepo, env.clientRepo, env.fileRepo, env.scheduleRepo, env.commentRepo,
		env.activity, tx, env.s3, env.notifier, nil, env.publisher, nil, log)
	env.files = NewFileService(env.fileRepo, env.dealRepo, env.activity, tx, env.s3, UploadLimits{}, nil, log)
	env.schedules = NewScheduleService(env.scheduleRepo, env.dealRepo, env.activity, tx, log)
	env.comments = NewCommentService(env.commentRepo, env.dealRepo, env.userRepo, env.activity, tx, env.notifier, log)
	env.clients = NewClientService(env.clientRepo, env.dealRepo, log)
	env.export = NewExportService(env.dealRepo, log)
	return env
}

func (e *testEnv) ctx() context.Context {
	return withActor(e.actor)
}

func withActor(userID uuid.UUID) context.Context {
	return context.WithValue(context.Background(), "user_id", userID)
}

func (e *testEnv) seedClient(t *testing.T, name string) *domain.Client {
	t.Helper()
	c := &domain.Client{CompanyName: name, Country: "USA", Status: domain.ClientStatusActive}
	require.NoError(t, e.clientRepo.Create(context.Background(), c))
	return c
}

// seedDeal creates a deal through the service so positions and the audit
// log are populated the way production writes them
func (e *testEnv) seedDeal(t *testing.T, c *domain.Client, title string, value int64) *dto.DealResponse {
	t.Helper()
	resp, err := e.deals.CreateDeal(e.ctx(), &dto.CreateDealRequest{
		Title:          title,
		ClientID:       c.ID,
		EstimatedValue: decimal.NewNullDecimal(decimal.NewFromInt(value)),
	})
	require.NoError(t, err)
	return resp
}

// moveTo moves a deal without reason or position
func (e *testEnv) moveTo(t *testing.T, dealID uuid.UUID, stage domain.Stage) *dto.MoveDealResponse {
	t.Helper()
	resp, err := e.pipeline.MoveDeal(e.ctx(), &dto.MoveDealRequest{DealID: dealID, Stage: string(stage)})
	require.NoError(t, err)
	return resp
}

func (e *testEnv) activities(t *testing.T, dealID uuid.UUID) []*domain.DealActivity {
	t.Helper()
	out, err := e.activityRepo.FindRecent(context.Background(), dealID, 100)
	require.NoError(t, err)
	return out
}

type publishedEvent struct {
	Type    string
	Payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: eventType, Payload: payload})
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []client.NotificationEvent
}

func (n *recordingNotifier) SendNotification(ctx context.Context, event client.NotificationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) SendBulkNotifications(ctx context.Context, events []client.NotificationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, events...)
	return nil
}

func (n *recordingNotifier) Events() []client.NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]client.NotificationEvent(nil), n.events...)
}
