package protocol

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/mediaroute-go/internal/channel"
	"github.com/wagiedev/mediaroute-go/internal/descriptor"
	"github.com/wagiedev/mediaroute-go/internal/errors"
	"github.com/wagiedev/mediaroute-go/internal/looper"
)

// mockService implements channel.Messenger and records every request.
type mockService struct {
	mu      sync.Mutex
	sent    []*channel.Message
	sendErr error
	binder  *mockBinder
}

func newMockService() *mockService {
	return &mockService{binder: &mockBinder{LocalBinder: channel.NewLocalBinder(channel.MessengerInterface)}}
}

func (m *mockService) Send(msg *channel.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return m.sendErr
	}

	m.sent = append(m.sent, msg.Clone())

	return nil
}

func (m *mockService) Binder() channel.Binder {
	return m.binder
}

func (m *mockService) setSendErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sendErr = err
}

func (m *mockService) ops() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	ops := make([]int, 0, len(m.sent))
	for _, msg := range m.sent {
		ops = append(ops, msg.What)
	}

	return ops
}

func (m *mockService) last() *channel.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sent) == 0 {
		return nil
	}

	return m.sent[len(m.sent)-1]
}

// mockBinder can refuse death links.
type mockBinder struct {
	*channel.LocalBinder

	linkErr error
}

func (b *mockBinder) LinkToDeath(r channel.DeathRecipient) error {
	if b.linkErr != nil {
		return b.linkErr
	}

	return b.LocalBinder.LinkToDeath(r)
}

// recordingListener records lifecycle notifications. It is only touched on the loop.
type recordingListener struct {
	ready       int
	died        int
	errs        []error
	descriptors []*descriptor.ProviderDescriptor
}

func (l *recordingListener) OnConnectionReady(*Connection) { l.ready++ }

func (l *recordingListener) OnConnectionDied(*Connection) { l.died++ }

func (l *recordingListener) OnConnectionError(_ *Connection, err error) {
	l.errs = append(l.errs, err)
}

func (l *recordingListener) OnConnectionDescriptorChanged(_ *Connection, d *descriptor.ProviderDescriptor) {
	l.descriptors = append(l.descriptors, d)
}

type harness struct {
	t         *testing.T
	loop      *looper.Looper
	callbacks *looper.Looper
	service   *mockService
	listener  *recordingListener
	conn      *Connection
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := slog.Default()

	h := &harness{
		t:         t,
		loop:      looper.New(log, "owner"),
		callbacks: looper.New(log, "callbacks"),
		service:   newMockService(),
		listener:  &recordingListener{},
	}

	h.loop.Start()
	h.callbacks.Start()

	t.Cleanup(func() {
		h.loop.Stop()
		h.callbacks.Stop()
	})

	h.conn = NewConnection(log, h.service, h.loop, h.callbacks, h.listener, ClientVersionCurrent)

	return h
}

func (h *harness) run(fn func()) {
	h.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(h.t, h.loop.Call(ctx, fn))
}

// flush waits until the owning loop and then the callback executor are idle.
func (h *harness) flush() {
	h.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(h.t, h.loop.Flush(ctx))
	require.NoError(h.t, h.loop.Flush(ctx))
	require.NoError(h.t, h.callbacks.Flush(ctx))
}

func (h *harness) deliver(msg *channel.Message) {
	h.t.Helper()

	require.NoError(h.t, h.conn.ReceiveMessenger().Send(msg))
	h.flush()
}

func (h *harness) sendRegister() {
	h.t.Helper()

	var ok bool

	h.run(func() { ok = h.conn.Register() })
	require.True(h.t, ok)
}

func (h *harness) register() {
	h.t.Helper()

	h.sendRegister()

	h.deliver(&channel.Message{
		What:      ServiceMsgRegistered,
		RequestID: 1,
		Arg:       ServiceVersion1,
		Payload:   testDescriptor().ToBundle(),
	})
	require.True(h.t, h.conn.IsRegistered())
}

// sendControl sends a control request on the loop and returns its request id.
func (h *harness) sendControl(action string, callback ControlRequestCallback) int {
	h.t.Helper()

	var (
		ok        bool
		requestID int
	)

	h.run(func() {
		ok = h.conn.SendControlRequest(1, &channel.ControlRequest{Action: action}, callback)
		requestID = h.service.last().RequestID
	})
	require.True(h.t, ok)

	return requestID
}

func testDescriptor() *descriptor.ProviderDescriptor {
	return &descriptor.ProviderDescriptor{Routes: []*descriptor.RouteDescriptor{
		{ID: "tv", Name: "TV", Enabled: true, VolumeMax: 10},
	}}
}

// resultRecorder collects control results delivered on the callback executor.
type resultRecorder struct {
	mu      sync.Mutex
	results []ControlResult
}

func (r *resultRecorder) callback() ControlRequestCallback {
	return func(result ControlResult) {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.results = append(r.results, result)
	}
}

func (r *resultRecorder) get() []ControlResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]ControlResult(nil), r.results...)
}

func TestConnection_RegisterSendsRequestAndLinksToDeath(t *testing.T) {
	h := newHarness(t)

	var ok bool

	h.run(func() { ok = h.conn.Register() })
	require.True(t, ok)

	msg := h.service.last()
	require.NotNil(t, msg)
	assert.Equal(t, ClientMsgRegister, msg.What)
	assert.Equal(t, 1, msg.RequestID)
	assert.Equal(t, ClientVersionCurrent, msg.Arg)
	assert.Equal(t, h.conn.ReceiveMessenger(), msg.ReplyTo)

	require.True(t, h.service.binder.UnlinkToDeath(h.conn), "register must link to death")
}

func TestConnection_RegisterFailsWhenSendFails(t *testing.T) {
	h := newHarness(t)
	h.service.setSendErr(errors.ErrDeadObject)

	var ok bool

	h.run(func() { ok = h.conn.Register() })
	require.False(t, ok)
	require.False(t, h.service.binder.UnlinkToDeath(h.conn))

	h.flush()
	assert.Zero(t, h.listener.died)
}

func TestConnection_RegisterLinkFailureTriggersDeath(t *testing.T) {
	h := newHarness(t)
	h.service.binder.linkErr = errors.ErrDeadObject

	var ok bool

	h.run(func() { ok = h.conn.Register() })
	require.False(t, ok)

	h.flush()
	assert.Equal(t, 1, h.listener.died)
}

func TestConnection_RegisteredIsAcceptedOnce(t *testing.T) {
	h := newHarness(t)
	h.register()

	assert.Equal(t, 1, h.listener.ready)
	require.Len(t, h.listener.descriptors, 1)
	assert.Equal(t, testDescriptor(), h.listener.descriptors[0])
	assert.Equal(t, ServiceVersion1, h.conn.ServiceVersion())

	h.deliver(&channel.Message{
		What:      ServiceMsgRegistered,
		RequestID: 1,
		Arg:       ServiceVersion1,
		Payload:   channel.Bundle{},
	})

	assert.Equal(t, 1, h.listener.ready)
	assert.Len(t, h.listener.descriptors, 1)
}

func TestConnection_RegisteredMismatchesAreIgnored(t *testing.T) {
	h := newHarness(t)

	h.sendRegister()

	// Wrong request id.
	h.deliver(&channel.Message{What: ServiceMsgRegistered, RequestID: 9, Arg: ServiceVersion1, Payload: channel.Bundle{}})
	// Service version below minimum.
	h.deliver(&channel.Message{What: ServiceMsgRegistered, RequestID: 1, Arg: 0, Payload: channel.Bundle{}})
	// Wrong payload shape.
	h.deliver(&channel.Message{What: ServiceMsgRegistered, RequestID: 1, Arg: ServiceVersion1, Payload: "descriptor"})

	assert.False(t, h.conn.IsRegistered())
	assert.Zero(t, h.listener.ready)
	assert.Empty(t, h.listener.descriptors)

	h.deliver(&channel.Message{What: ServiceMsgRegistered, RequestID: 1, Arg: ServiceVersion1, Payload: channel.Bundle{}})
	assert.True(t, h.conn.IsRegistered())
	assert.Equal(t, 1, h.listener.ready)
}

func mixedRoutesBundle() channel.Bundle {
	return channel.Bundle{"routes": []any{
		channel.Bundle{"id": "tv", "name": "TV", "volumeMax": 10},
		channel.Bundle{"id": "spk", "name": "Speaker", "volume": 5, "volumeMax": 0},
	}}
}

func TestConnection_RegisteredWithInvalidRouteStillRegisters(t *testing.T) {
	h := newHarness(t)

	h.sendRegister()
	h.deliver(&channel.Message{What: ServiceMsgRegistered, RequestID: 1, Arg: ServiceVersion1, Payload: mixedRoutesBundle()})

	assert.True(t, h.conn.IsRegistered())
	assert.Equal(t, 1, h.listener.ready)
	require.Len(t, h.listener.descriptors, 1)
	require.Len(t, h.listener.descriptors[0].Routes, 1)
	assert.Equal(t, "tv", h.listener.descriptors[0].Routes[0].ID)

	_, ok := h.listener.descriptors[0].Route("spk")
	assert.False(t, ok)
}

func TestConnection_RegisteredWithMalformedRoutesIsEmpty(t *testing.T) {
	h := newHarness(t)

	h.sendRegister()
	h.deliver(&channel.Message{What: ServiceMsgRegistered, RequestID: 1, Arg: ServiceVersion1,
		Payload: channel.Bundle{"routes": "none"}})

	assert.True(t, h.conn.IsRegistered())
	assert.Equal(t, 1, h.listener.ready)
	require.Len(t, h.listener.descriptors, 1)
	assert.Empty(t, h.listener.descriptors[0].Routes)
}

func TestConnection_DescriptorChangedKeepsValidRoutes(t *testing.T) {
	h := newHarness(t)
	h.register()

	h.deliver(&channel.Message{What: ServiceMsgDescriptorChanged, Payload: mixedRoutesBundle()})

	require.Len(t, h.listener.descriptors, 2)

	latest := h.listener.descriptors[1]
	require.Len(t, latest.Routes, 1)
	assert.Equal(t, "tv", latest.Routes[0].ID)
}

func TestConnection_DescriptorChangedRequiresRegistration(t *testing.T) {
	h := newHarness(t)

	h.sendRegister()
	h.deliver(&channel.Message{What: ServiceMsgDescriptorChanged, Payload: testDescriptor().ToBundle()})
	assert.Empty(t, h.listener.descriptors)

	h.deliver(&channel.Message{What: ServiceMsgRegistered, RequestID: 1, Arg: ServiceVersion1, Payload: channel.Bundle{}})
	h.deliver(&channel.Message{What: ServiceMsgDescriptorChanged, Payload: testDescriptor().ToBundle()})

	require.Len(t, h.listener.descriptors, 2)
	assert.Empty(t, h.listener.descriptors[0].Routes)
	assert.Equal(t, testDescriptor(), h.listener.descriptors[1])
}

func TestConnection_GenericFailureForRegistrationIsConnectionError(t *testing.T) {
	h := newHarness(t)

	h.sendRegister()
	h.deliver(&channel.Message{What: ServiceMsgGenericFailure, RequestID: 1})

	require.Len(t, h.listener.errs, 1)
	require.ErrorIs(t, h.listener.errs[0], errors.ErrRegistrationFailed)

	// The registration marker is cleared; a late REGISTERED is ignored.
	h.deliver(&channel.Message{What: ServiceMsgRegistered, RequestID: 1, Arg: ServiceVersion1, Payload: channel.Bundle{}})
	assert.False(t, h.conn.IsRegistered())
}

func TestConnection_GenericFailureWithZeroIDAfterRegistration(t *testing.T) {
	h := newHarness(t)
	h.register()

	h.deliver(&channel.Message{What: ServiceMsgGenericFailure, RequestID: 0})
	assert.Empty(t, h.listener.errs)
}

func TestConnection_ControlRequestResultResolvesOnce(t *testing.T) {
	h := newHarness(t)
	h.register()

	rec := &resultRecorder{}
	req := &channel.ControlRequest{Action: "media.PLAY"}

	var (
		ok        bool
		requestID int
	)

	h.run(func() {
		ok = h.conn.SendControlRequest(1, req, rec.callback())
		requestID = h.service.last().RequestID
	})
	require.True(t, ok)
	assert.Equal(t, 1, h.conn.PendingCallbacks())
	assert.Equal(t, ClientMsgRouteControlRequest, h.service.last().What)
	assert.Equal(t, req, h.service.last().Payload)

	h.deliver(&channel.Message{What: ServiceMsgControlResult, RequestID: requestID, Arg: ResultSucceeded,
		Payload: channel.Bundle{"position": 12}})
	h.deliver(&channel.Message{What: ServiceMsgControlResult, RequestID: requestID, Arg: ResultSucceeded})

	results := rec.get()
	require.Len(t, results, 1)
	assert.False(t, results[0].Failed())
	assert.Equal(t, channel.Bundle{"position": 12}, results[0].Data)
	assert.Zero(t, h.conn.PendingCallbacks())
}

func TestConnection_GenericFailureFailsControlRequest(t *testing.T) {
	h := newHarness(t)
	h.register()

	rec := &resultRecorder{}

	requestID := h.sendControl("x", rec.callback())

	h.deliver(&channel.Message{What: ServiceMsgGenericFailure, RequestID: requestID})

	results := rec.get()
	require.Len(t, results, 1)
	assert.True(t, results[0].Failed())
	assert.Empty(t, h.listener.errs)
}

func TestConnection_SendControlRequestFailureKeepsNoCallback(t *testing.T) {
	h := newHarness(t)
	h.register()
	h.service.setSendErr(errors.ErrDeadObject)

	rec := &resultRecorder{}

	var ok bool

	h.run(func() { ok = h.conn.SendControlRequest(1, &channel.ControlRequest{Action: "x"}, rec.callback()) })
	require.False(t, ok)
	assert.Zero(t, h.conn.PendingCallbacks())

	h.service.setSendErr(nil)
	h.run(func() { ok = h.conn.SendControlRequest(1, &channel.ControlRequest{Action: "x"}, nil) })
	require.True(t, ok, "a nil callback does not affect the result")
	assert.Zero(t, h.conn.PendingCallbacks())

	h.flush()
	assert.Empty(t, rec.get())
}

func TestConnection_DisposeFailsPendingCallbacksExactlyOnce(t *testing.T) {
	h := newHarness(t)
	h.register()

	first := &resultRecorder{}
	second := &resultRecorder{}

	firstID := h.sendControl("a", first.callback())
	h.sendControl("b", second.callback())

	h.deliver(&channel.Message{What: ServiceMsgControlResult, RequestID: firstID, Arg: ResultSucceeded})

	h.run(h.conn.Dispose)
	h.run(h.conn.Dispose)
	h.flush()

	require.Len(t, first.get(), 1)
	assert.False(t, first.get()[0].Failed())

	require.Len(t, second.get(), 1)
	assert.True(t, second.get()[0].Failed())
	assert.Zero(t, h.conn.PendingCallbacks())

	ops := h.service.ops()
	assert.Equal(t, ClientMsgUnregister, ops[len(ops)-1])
	assert.Equal(t, 1, countOps(ops, ClientMsgUnregister))
	assert.False(t, h.service.binder.UnlinkToDeath(h.conn), "dispose must unlink from death")
}

func TestConnection_RepliesQueuedBeforeDisposeAreDeliveredFirst(t *testing.T) {
	h := newHarness(t)
	h.register()

	rec := &resultRecorder{}

	requestID := h.sendControl("a", rec.callback())

	gate := make(chan struct{})

	h.loop.Post(func() { <-gate })
	require.NoError(t, h.conn.ReceiveMessenger().Send(&channel.Message{
		What: ServiceMsgControlResult, RequestID: requestID, Arg: ResultSucceeded,
	}))
	h.loop.Post(h.conn.Dispose)
	close(gate)

	h.flush()

	results := rec.get()
	require.Len(t, results, 1)
	assert.False(t, results[0].Failed())
}

func TestConnection_MessagesAfterDisposeAreDropped(t *testing.T) {
	h := newHarness(t)
	h.register()

	h.run(h.conn.Dispose)
	h.deliver(&channel.Message{What: ServiceMsgDescriptorChanged, Payload: testDescriptor().ToBundle()})
	h.deliver(&channel.Message{What: ServiceMsgGenericFailure, RequestID: 1})

	assert.Len(t, h.listener.descriptors, 1)
	assert.Empty(t, h.listener.errs)
}

func TestConnection_DeathNotificationIsMarshaledToLoop(t *testing.T) {
	h := newHarness(t)
	h.register()

	h.service.binder.Kill()

	require.Eventually(t, func() bool {
		var died int

		h.run(func() { died = h.listener.died })

		return died == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConnection_AllocatesMonotonicIDs(t *testing.T) {
	h := newHarness(t)
	h.register()

	var a, b int

	h.run(func() {
		a = h.conn.CreateRouteController("tv")
		b = h.conn.CreateRouteController("tv")
		h.conn.SelectRoute(a)
		h.conn.SetVolume(a, 4)
		h.conn.UpdateVolume(b, -1)
		h.conn.UnselectRoute(a)
		h.conn.ReleaseRouteController(b)
	})

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)

	h.service.mu.Lock()
	defer h.service.mu.Unlock()

	for i, msg := range h.service.sent {
		assert.Equal(t, i+1, msg.RequestID, "request ids increase by one per request")
	}

	create := h.service.sent[1]
	routeID, _ := create.Payload.(channel.Bundle).String(ClientDataRouteID)
	assert.Equal(t, "tv", routeID)
	assert.Equal(t, 1, create.Arg)

	update := h.service.sent[5]
	assert.Equal(t, ClientMsgUpdateRouteVolume, update.What)

	delta, _ := update.Payload.(channel.Bundle).Int(ClientDataVolume)
	assert.Equal(t, -1, delta)
}

func countOps(ops []int, what int) int {
	n := 0

	for _, op := range ops {
		if op == what {
			n++
		}
	}

	return n
}
