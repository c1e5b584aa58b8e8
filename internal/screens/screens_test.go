package screens

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/planmarket/internal/client"
	"github.com/Windi-Fikriyansyah/planmarket/internal/devserver"
	"github.com/Windi-Fikriyansyah/planmarket/internal/livesync"
	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
	"github.com/Windi-Fikriyansyah/planmarket/internal/session"
)

var (
	pngHead = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	gifHead = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00")
)

const wait = 3 * time.Second

// user is one signed-in app instance: its gateway, feed and session.
type user struct {
	api  *client.API
	feed *client.Realtime
	sess *session.Manager
}

func (u *user) id() uuid.UUID { return u.sess.Current().UserID }

func startServer(t *testing.T) *devserver.Server {
	t.Helper()
	srv, err := devserver.Start(devserver.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func connectUser(t *testing.T, srv *devserver.Server, signIn func(*session.Manager) error) *user {
	t.Helper()
	api := client.New(srv.BaseURL())
	u := &user{api: api, sess: session.NewManager(api, nil)}
	if signIn != nil {
		require.NoError(t, signIn(u.sess))
	}
	u.feed = client.NewRealtime(client.RealtimeURL(srv.BaseURL()))
	require.NoError(t, u.feed.Connect(context.Background(), api.Token()))
	t.Cleanup(func() { _ = u.feed.Close() })
	return u
}

func advisor(t *testing.T, srv *devserver.Server) *user {
	t.Helper()
	_, err := srv.CreateAdvisor(context.Background(), "ana@test.dev", "secret123", "Ana Advisor")
	require.NoError(t, err)
	return connectUser(t, srv, func(m *session.Manager) error {
		_, err := m.SignIn(context.Background(), "ana@test.dev", "secret123")
		return err
	})
}

func customer(t *testing.T, srv *devserver.Server, name, email string) *user {
	t.Helper()
	return connectUser(t, srv, func(m *session.Manager) error {
		_, err := m.SignUp(context.Background(), name, email, "secret123", "")
		return err
	})
}

func createPlan(t *testing.T, api *client.API, name string, price float64) *models.Plan {
	t.Helper()
	f := NewPlanForm(api)
	f.Input.Name = name
	f.Input.Price = price
	p, err := f.Submit(context.Background())
	require.NoError(t, err)
	return p
}

func statusOf(list []client.Contract, id uuid.UUID) models.ContractStatus {
	for _, c := range list {
		if c.ID == id {
			return c.Status
		}
	}
	return ""
}

func TestRequestApproveFlowUpdatesBothLiveLists(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	adv := advisor(t, srv)
	cust := customer(t, srv, "Carla Customer", "carla@test.dev")

	plan := createPlan(t, adv.api, "Max 50", 19.9)

	requests := NewRequests(adv.api, adv.feed, nil)
	require.NoError(t, requests.Open(ctx))
	defer requests.Close()
	assert.Empty(t, requests.Items())

	mine := NewMyRequests(cust.api, cust.feed)
	require.NoError(t, mine.Open(ctx))
	defer mine.Close()

	detail := NewPlanDetail(cust.api, cust.api, cust.sess, plan.ID)
	require.NoError(t, detail.Load(ctx))
	assert.True(t, detail.CanRequest())
	cr, err := detail.Request(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ContractPending, cr.Status)

	require.Eventually(t, func() bool { return statusOf(requests.Items(), cr.ID) == models.ContractPending }, wait, 10*time.Millisecond)
	require.Eventually(t, func() bool { return statusOf(mine.Items(), cr.ID) == models.ContractPending }, wait, 10*time.Millisecond)
	listed := requests.Items()[0]
	require.NotNil(t, listed.Requester)
	assert.Equal(t, "Carla Customer", listed.Requester.FullName)
	require.NotNil(t, listed.Plan)
	assert.Equal(t, "Max 50", listed.Plan.Name)
	assert.Equal(t, 1, requests.Pending())

	require.NoError(t, requests.Approve(ctx, cr.ID))
	assert.Equal(t, models.ContractApproved, statusOf(requests.Items(), cr.ID))

	require.Eventually(t, func() bool { return statusOf(mine.Items(), cr.ID) == models.ContractApproved }, wait, 10*time.Millisecond)
	mineNow := mine.Items()
	require.Len(t, mineNow, 1)
	assert.NotNil(t, mineNow[0].ApprovedAt)
	assert.Nil(t, mineNow[0].Requester)

	assert.ErrorIs(t, requests.Reject(ctx, cr.ID), ErrNotPending)
	assert.Equal(t, 0, requests.Pending())
}

func TestRequestRequiresCustomer(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	adv := advisor(t, srv)
	plan := createPlan(t, adv.api, "Basic", 5)

	guest := connectUser(t, srv, nil)
	d := NewPlanDetail(guest.api, guest.api, guest.sess, plan.ID)
	require.NoError(t, d.Load(ctx))
	_, err := d.Request(ctx)
	assert.ErrorIs(t, err, ErrSignInRequired)

	ad := NewPlanDetail(adv.api, adv.api, adv.sess, plan.ID)
	_, err = ad.Request(ctx)
	assert.ErrorIs(t, err, ErrWrongRole)
}

func TestRejectRollsBackWhenServerRefuses(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	adv := advisor(t, srv)
	cust := customer(t, srv, "Carla", "carla@test.dev")
	plan := createPlan(t, adv.api, "Basic", 5)
	cr, err := cust.api.RequestPlan(ctx, plan.ID)
	require.NoError(t, err)

	var notified []error
	requests := NewRequests(adv.api, adv.feed, livesync.NotifierFunc(func(_ string, err error) { notified = append(notified, err) }))
	require.NoError(t, requests.Open(ctx))
	defer requests.Close()

	// another advisor session decides first
	_, err = adv.api.SetRequestStatus(ctx, cr.ID, models.ContractApproved)
	require.NoError(t, err)

	err = requests.Reject(ctx, cr.ID)
	if errors.Is(err, ErrNotPending) {
		// the live list already caught up
		return
	}
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.Status)
	assert.Len(t, notified, 1)
	assert.NotEqual(t, models.ContractRejected, statusOf(requests.Items(), cr.ID))
}

func TestExploreSearchAndVisibility(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	adv := advisor(t, srv)
	guest := connectUser(t, srv, nil)

	f := NewPlanForm(adv.api)
	f.Input.Name = "Max 50"
	f.Input.Price = 29
	desc := "Unlimited calls and 50 GB"
	f.Input.ShortDescription = &desc
	_, err := f.Submit(ctx)
	require.NoError(t, err)
	basic := createPlan(t, adv.api, "Basic", 5)

	explore := NewExplore(guest.api, guest.feed)
	require.NoError(t, explore.Open(ctx))
	defer explore.Close()

	items := explore.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Basic", items[0].Name)

	explore.SetQuery("UNLIMITED")
	require.Len(t, explore.Visible(), 1)
	assert.Equal(t, "Max 50", explore.Visible()[0].Name)
	explore.SetQuery("")

	edit, err := EditPlanForm(ctx, adv.api, basic.ID)
	require.NoError(t, err)
	inactive := false
	edit.Input.Active = &inactive
	_, err = edit.Submit(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(explore.Items()) == 1 }, wait, 10*time.Millisecond)
	assert.Equal(t, "Max 50", explore.Items()[0].Name)
}

func TestScreenOpenCloseCyclesLeaveNoSubscriptions(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	guest := connectUser(t, srv, nil)

	for i := 0; i < 20; i++ {
		explore := NewExplore(guest.api, guest.feed)
		require.NoError(t, explore.Open(ctx))
		explore.Close()
		explore.Close()
	}
	assert.Equal(t, 0, guest.feed.Subscriptions())
	require.Eventually(t, func() bool { return srv.Hub.SubscriptionCount() == 0 }, wait, 10*time.Millisecond)
}

func TestPlanFormValidatesBeforeCallingOut(t *testing.T) {
	// a nil gateway panics on any call
	var none client.PlanGateway
	f := NewPlanForm(none)
	f.Input.Name = "   "
	f.Input.Price = 0

	_, err := f.Submit(context.Background())
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "name")
	assert.Contains(t, vErr.Fields, "price")
}

func TestPlanImageRoundTripAndRemoval(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	adv := advisor(t, srv)

	f := NewPlanForm(adv.api)
	f.Input.Name = "Photo plan"
	f.Input.Price = 12
	f.SetImage("front.png", pngHead)
	p, err := f.Submit(ctx)
	require.NoError(t, err)
	require.NotNil(t, p.ImageURL)
	first := *p.ImageURL
	ok, err := srv.Images.Exists(ctx, first)
	require.NoError(t, err)
	assert.True(t, ok)

	// replace
	f.SetImage("front.gif", gifHead)
	p, err = f.Submit(ctx)
	require.NoError(t, err)
	require.NotNil(t, p.ImageURL)
	assert.NotEqual(t, first, *p.ImageURL)
	ok, _ = srv.Images.Exists(ctx, first)
	assert.False(t, ok)
	assert.Equal(t, 1, srv.Images.Len())

	// remove
	f.RemoveImage()
	p, err = f.Submit(ctx)
	require.NoError(t, err)
	assert.Nil(t, p.ImageURL)
	assert.Equal(t, 0, srv.Images.Len())

	// delete takes the blob with it
	f.SetImage("again.png", pngHead)
	_, err = f.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Images.Len())

	mgmt := NewPlanManagement(adv.api, adv.feed, nil)
	require.NoError(t, mgmt.Open(ctx))
	defer mgmt.Close()
	require.NoError(t, mgmt.Delete(ctx, p.ID))
	assert.Empty(t, mgmt.Items())
	assert.Equal(t, 0, srv.Images.Len())
}

func TestPlanManagementDeleteRollsBack(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	adv := advisor(t, srv)
	for _, n := range []string{"A", "B", "C"} {
		createPlan(t, adv.api, n, 10)
	}

	var notified int
	mgmt := NewPlanManagement(adv.api, adv.feed, livesync.NotifierFunc(func(string, error) { notified++ }))
	require.NoError(t, mgmt.Open(ctx))
	defer mgmt.Close()
	before := mgmt.Items()
	require.Len(t, before, 3)

	// the gateway loses its token, so the delete is refused
	adv.api.SetToken("")
	err := mgmt.Delete(ctx, before[1].ID)
	require.Error(t, err)
	assert.Equal(t, before, mgmt.Items())
	assert.Equal(t, 1, notified)
}

func TestPlanManagementDeleteOfRequestedPlanRollsBack(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	adv := advisor(t, srv)
	cust := customer(t, srv, "Rita Requester", "rita@test.dev")
	plan := createPlan(t, adv.api, "Requested", 10)
	_, err := cust.api.RequestPlan(ctx, plan.ID)
	require.NoError(t, err)

	var notified int
	mgmt := NewPlanManagement(adv.api, adv.feed, livesync.NotifierFunc(func(string, error) { notified++ }))
	require.NoError(t, mgmt.Open(ctx))
	defer mgmt.Close()
	before := mgmt.Items()

	err = mgmt.Delete(ctx, plan.ID)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, before, mgmt.Items())
	assert.Equal(t, 1, notified)
}

func TestChatLiveMessagesTypingAndNotifier(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	adv := advisor(t, srv)
	cust := customer(t, srv, "Carla Customer", "carla@test.dev")
	plan := createPlan(t, adv.api, "Chat plan", 9)
	cr, err := cust.api.RequestPlan(ctx, plan.ID)
	require.NoError(t, err)

	var mu sync.Mutex
	var advisorHeard []client.Message
	var customerHeard []client.Message
	advNotifier := NewMessageNotifier(adv.feed, adv.id(), func(m client.Message) {
		mu.Lock()
		advisorHeard = append(advisorHeard, m)
		mu.Unlock()
	})
	require.NoError(t, advNotifier.Start(ctx))
	defer advNotifier.Stop()
	custNotifier := NewMessageNotifier(cust.feed, cust.id(), func(m client.Message) {
		mu.Lock()
		customerHeard = append(customerHeard, m)
		mu.Unlock()
	})
	require.NoError(t, custNotifier.Start(ctx))
	defer custNotifier.Stop()

	advChat := NewChat(adv.api, adv.feed, cr.ID, adv.id(), nil, nil)
	require.NoError(t, advChat.Open(ctx))
	defer advChat.Close()
	custChat := NewChat(cust.api, cust.feed, cr.ID, cust.id(), nil, nil)
	require.NoError(t, custChat.Open(ctx))
	defer custChat.Close()

	assert.ErrorIs(t, custChat.Send(ctx, "   "), ErrEmptyMessage)
	require.NoError(t, custChat.Send(ctx, "hello"))
	require.Eventually(t, func() bool { return len(custChat.Items()) == 1 }, wait, 10*time.Millisecond)
	require.NoError(t, advChat.Send(ctx, "hi Carla"))

	contents := func(c *Chat) []string {
		var out []string
		for _, m := range c.Items() {
			out = append(out, m.Content)
		}
		return out
	}
	require.Eventually(t, func() bool { return len(advChat.Items()) == 2 && len(custChat.Items()) == 2 }, wait, 10*time.Millisecond)
	assert.Equal(t, []string{"hi Carla", "hello"}, contents(advChat))
	assert.Equal(t, []string{"hi Carla", "hello"}, contents(custChat))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(advisorHeard) == 1 && len(customerHeard) == 1
	}, wait, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, "Carla Customer", advisorHeard[0].SenderName)
	assert.Equal(t, "hello", advisorHeard[0].Content)
	assert.Equal(t, "Ana Advisor", customerHeard[0].SenderName)
	mu.Unlock()

	// a reopened chat still lists newest first
	again := NewChat(cust.api, cust.feed, cr.ID, cust.id(), nil, nil)
	require.NoError(t, again.Open(ctx))
	assert.Equal(t, []string{"hi Carla", "hello"}, contents(again))
	again.Close()

	assert.False(t, advChat.OtherTyping())
	custChat.Typing(ctx)
	require.Eventually(t, advChat.OtherTyping, wait, 10*time.Millisecond)
	assert.False(t, custChat.OtherTyping())

	convs := NewConversations(adv.api, adv.feed)
	require.NoError(t, convs.Open(ctx))
	defer convs.Close()
	list := convs.Items()
	require.Len(t, list, 1)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "hi Carla", list[0].LastMessage.Content)
}

func TestChatRoomRefusesStrangers(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	adv := advisor(t, srv)
	owner := customer(t, srv, "Carla", "carla@test.dev")
	other := customer(t, srv, "Olga", "olga@test.dev")
	plan := createPlan(t, adv.api, "Private", 9)
	cr, err := owner.api.RequestPlan(ctx, plan.ID)
	require.NoError(t, err)

	_, err = other.feed.Join(ctx, ChatRoom(cr.ID), func(string, json.RawMessage) {})
	require.Error(t, err)

	chat := NewChat(other.api, other.feed, cr.ID, other.id(), nil, nil)
	err = chat.Open(ctx)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
	assert.Equal(t, 0, other.feed.Subscriptions())
}
