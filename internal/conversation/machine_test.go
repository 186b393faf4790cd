package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/wellness-commerce-bot/internal/availability"
	"github.com/wolfman30/wellness-commerce-bot/internal/booking"
	"github.com/wolfman30/wellness-commerce-bot/internal/catalog"
	"github.com/wolfman30/wellness-commerce-bot/internal/config"
	"github.com/wolfman30/wellness-commerce-bot/internal/ledger"
)

const testUser = "5215512345678"

var testLinks = config.ProductLinks{
	TherapyPackage: "https://shop.test/terapia-3",
	SingleSession:  "https://shop.test/terapia-1",
	Course:         "https://academy.test/curso",
	Book:           "https://shop.test/libro",
	Ebook:          "https://shop.test/ebook.pdf",
	MethodVideo:    "https://ig.test/metodo",
	TreatmentVideo: "https://ig.test/tratamiento",
	Coupon:         "SALUD10",
}

type fakeSlots struct {
	slots []availability.Slot
	err   error
	max   int
}

func (f *fakeSlots) ListAvailableSlots(ctx context.Context, now time.Time, horizonDays, maxResults int) ([]availability.Slot, error) {
	f.max = maxResults
	if f.err != nil {
		return nil, f.err
	}
	return f.slots, nil
}

type fakeBooker struct {
	mu       sync.Mutex
	requests []booking.Request
	err      error
	delay    time.Duration
}

func (f *fakeBooker) Book(ctx context.Context, req booking.Request) (*booking.Result, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &booking.Result{EventID: "evt-1", Title: booking.Title(req.UserID, req.Free), Start: req.Slot.Start, End: req.Slot.End(), Free: req.Free}, nil
}

func (f *fakeBooker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeCampaigns struct {
	mu        sync.Mutex
	interests []string
	cancels   []string
}

func (f *fakeCampaigns) StartInterest(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interests = append(f.interests, userID)
}

func (f *fakeCampaigns) CancelReminder(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, userID)
	return false
}

type sentMessage struct {
	to   string
	body string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(ctx context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return "SM-test", nil
}

func (f *fakeSender) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].body
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []string
}

func (f *fakeNotifier) NotifyBooking(ctx context.Context, userID string, res *booking.Result, note string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, note)
}

type machineFixture struct {
	machine   *Machine
	slots     *fakeSlots
	booker    *fakeBooker
	ledger    *ledger.MemoryStore
	pending   *MemoryPendingStore
	campaigns *fakeCampaigns
	sender    *fakeSender
	notifier  *fakeNotifier
	catalog   *catalog.Catalog
}

func newMachineFixture(t *testing.T) *machineFixture {
	t.Helper()
	f := &machineFixture{
		slots:     &fakeSlots{},
		booker:    &fakeBooker{},
		ledger:    ledger.NewMemoryStore(),
		pending:   NewMemoryPendingStore(72 * time.Hour),
		campaigns: &fakeCampaigns{},
		sender:    &fakeSender{},
		notifier:  &fakeNotifier{},
		catalog:   catalog.New(testLinks),
	}
	f.machine = NewMachine(MachineConfig{
		Slots:     f.slots,
		Booker:    f.booker,
		Ledger:    f.ledger,
		Pending:   f.pending,
		Campaigns: f.campaigns,
		Sender:    f.sender,
		Catalog:   f.catalog,
		Notifier:  f.notifier,
		Location:  time.UTC,
		Now:       func() time.Time { return time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) },
	})
	return f
}

func at(day, hour, minute int) availability.Slot {
	return availability.Slot{Start: time.Date(2025, 6, day, hour, minute, 0, 0, time.UTC)}
}

func TestMachine_ChooseSlotThenDetailBooksFreeSession(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.machine.HandleInbound(ctx, testUser, "2025-06-06 07:00"))
	assert.Equal(t, f.catalog.AskCondition("2025-06-06 07:00"), f.sender.last())
	assert.Zero(t, f.booker.count(), "choosing a slot must not book")

	p, ok, _ := f.pending.Get(ctx, testUser)
	require.True(t, ok)
	assert.Equal(t, at(6, 7, 0).Start, p.SlotStart)

	require.NoError(t, f.machine.HandleInbound(ctx, testUser, "dolor de espalda"))

	require.Equal(t, 1, f.booker.count())
	req := f.booker.requests[0]
	assert.True(t, req.Free)
	assert.Equal(t, "dolor de espalda", req.Note)
	assert.Equal(t, at(6, 7, 0).Start, req.Slot.Start)
	assert.Equal(t, f.catalog.BookingConfirmed("2025-06-06 07:00"), f.sender.last())

	converted, _ := f.ledger.HasConverted(ctx, testUser)
	assert.True(t, converted)
	_, ok, _ = f.pending.Get(ctx, testUser)
	assert.False(t, ok)
	assert.Equal(t, []string{"dolor de espalda"}, f.notifier.notes)

	// A repeated detail message no longer has a pending slot to book.
	require.NoError(t, f.machine.HandleInbound(ctx, testUser, "dolor de espalda"))
	assert.Equal(t, 1, f.booker.count())
}

func TestMachine_PendingDetailWinsOverOtherRules(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.pending.Put(ctx, PendingBooking{UserID: testUser, SlotStart: at(7, 9, 40).Start}))

	require.NoError(t, f.machine.HandleInbound(ctx, testUser, "sí, quiero terapia"))

	require.Equal(t, 1, f.booker.count())
	assert.Equal(t, "sí, quiero terapia", f.booker.requests[0].Note)
	assert.Empty(t, f.campaigns.interests)
}

func TestMachine_BookingFailureRestoresPending(t *testing.T) {
	f := newMachineFixture(t)
	f.booker.err = booking.ErrBookingFailed
	ctx := context.Background()
	require.NoError(t, f.pending.Put(ctx, PendingBooking{UserID: testUser, SlotStart: at(6, 8, 20).Start}))

	require.NoError(t, f.machine.HandleInbound(ctx, testUser, "migraña"))

	assert.Equal(t, f.catalog.BookingFailed("2025-06-06 08:20"), f.sender.last())
	p, ok, _ := f.pending.Get(ctx, testUser)
	require.True(t, ok)
	assert.Equal(t, at(6, 8, 20).Start, p.SlotStart)

	converted, _ := f.ledger.HasConverted(ctx, testUser)
	assert.False(t, converted)
	assert.Empty(t, f.notifier.notes)
}

func TestMachine_ConcurrentDetailsBookOnce(t *testing.T) {
	f := newMachineFixture(t)
	f.booker.delay = 20 * time.Millisecond
	ctx := context.Background()
	require.NoError(t, f.pending.Put(ctx, PendingBooking{UserID: testUser, SlotStart: at(6, 7, 0).Start}))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.machine.HandleInbound(ctx, testUser, "ansiedad")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.booker.count())
}

func TestMachine_AcceptFreeOffersFridayAndSaturdayOnly(t *testing.T) {
	f := newMachineFixture(t)
	f.slots.slots = []availability.Slot{at(2, 7, 0), at(5, 7, 0), at(6, 7, 0), at(7, 9, 0), at(8, 9, 0)}

	require.NoError(t, f.machine.HandleInbound(context.Background(), testUser, "Sí"))

	assert.Equal(t, f.catalog.FreeSlots([]string{"2025-06-06 07:00", "2025-06-07 09:00"}), f.sender.last())
	assert.Equal(t, freeOfferScan, f.slots.max)
}

func TestMachine_AcceptFreeCapsAtMaxSlots(t *testing.T) {
	f := newMachineFixture(t)
	var slots []availability.Slot
	for i := 0; i < 14; i++ {
		slots = append(slots, availability.Slot{Start: at(6, 7, 0).Start.Add(time.Duration(i) * availability.SlotStep)})
	}
	f.slots.slots = slots

	require.NoError(t, f.machine.HandleInbound(context.Background(), testUser, "si"))

	var want []string
	for _, s := range slots[:availability.DefaultMaxResults] {
		want = append(want, s.String())
	}
	assert.Equal(t, f.catalog.FreeSlots(want), f.sender.last())
}

func TestMachine_AcceptFreeWithoutSlots(t *testing.T) {
	f := newMachineFixture(t)
	f.slots.slots = []availability.Slot{at(2, 7, 0)}
	require.NoError(t, f.machine.HandleInbound(context.Background(), testUser, "me gustaría"))
	assert.Equal(t, f.catalog.NoFreeSlots(), f.sender.last())

	f.slots.err = availability.ErrCalendarUnavailable
	require.NoError(t, f.machine.HandleInbound(context.Background(), testUser, "me gustaría"))
	assert.Equal(t, f.catalog.CalendarUnavailable(), f.sender.last())
}

func TestMachine_TherapyInterestStartsCampaign(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.machine.HandleInbound(ctx, testUser, "Quiero una consulta"))

	assert.Equal(t, f.catalog.TherapyInfo(), f.sender.last())
	assert.Equal(t, []string{testUser}, f.campaigns.interests)
	interested, _ := f.ledger.IsInterested(ctx, testUser)
	assert.True(t, interested)
}

func TestMachine_StaticBranches(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	cases := map[string]string{
		"quiero comprar":          f.catalog.PurchaseGuide(),
		"háblame del método":      f.catalog.MethodInfo(),
		"info del curso":          f.catalog.CourseInfo(),
		"cuál es el precio":       f.catalog.PriceRule(),
		"cómo funciona":           f.catalog.HowItWorksRule(),
		"hola, buenas tardes":     f.catalog.Greeting(),
		"2025-02-30 25:00 quizás": f.catalog.Greeting(),
	}
	for text, want := range cases {
		require.NoError(t, f.machine.HandleInbound(ctx, testUser, text))
		assert.Equal(t, want, f.sender.last(), text)
	}
}

func TestMachine_EveryInboundCancelsReminder(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	for _, text := range []string{"hola", "2025-06-06 07:00", "dolor"} {
		require.NoError(t, f.machine.HandleInbound(ctx, testUser, text))
	}
	assert.Len(t, f.campaigns.cancels, 3)
}

func TestMachine_SendFailureIsReturned(t *testing.T) {
	f := newMachineFixture(t)
	f.sender.err = errors.New("twilio down")
	err := f.machine.HandleInbound(context.Background(), testUser, "hola")
	assert.ErrorContains(t, err, "twilio down")
}

func TestNewMachinePanicsWithoutCollaborators(t *testing.T) {
	assert.Panics(t, func() { NewMachine(MachineConfig{}) })
}
