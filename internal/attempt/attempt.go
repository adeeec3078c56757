// Package attempt runs one provisioning form submission end to end:
// file intake, concurrent upload, then the provisioning call.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/botdash/botdash/internal/chatbot"
	"github.com/botdash/botdash/internal/intake"
	"github.com/botdash/botdash/internal/notify"
	"github.com/botdash/botdash/pkg/logger"
)

// State is the lifecycle of the controller's current attempt.
type State string

const (
	Idle         State = "idle"
	Uploading    State = "uploading"
	Provisioning State = "provisioning"
	Succeeded    State = "succeeded"
	Failed       State = "failed"
)

// Busy reports whether an attempt is outstanding.
func (s State) Busy() bool { return s == Uploading || s == Provisioning }

var (
	ErrAttemptInProgress = errors.New("a provisioning attempt is already in progress")
	ErrNotLoggedIn       = errors.New("You must be logged in to create a chatbot")
)

// Session resolves the signed-in caller.
type Session interface {
	Caller(ctx context.Context) (*chatbot.Caller, error)
}

// Uploader stores accepted files and returns their paths in input order.
type Uploader interface {
	Upload(ctx context.Context, callerID string, files []intake.File) ([]string, error)
}

// Provisioner calls the provisioning service.
type Provisioner interface {
	Provision(ctx context.Context, req chatbot.ProvisionRequest) (*chatbot.Chatbot, error)
}

// Refresher re-reads the chatbot directory.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Deps are the collaborators of a Controller. Directory and Notifier may be nil.
type Deps struct {
	Session     Session
	Uploader    Uploader
	Provisioner Provisioner
	Directory   Refresher
	Notifier    notify.Notifier
}

// Controller allows one attempt at a time.
type Controller struct {
	deps Deps

	mu    sync.Mutex
	state State
}

func New(deps Deps) *Controller {
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard
	}
	return &Controller{deps: deps, state: Idle}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) set(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Submit runs one attempt. Each rejected file produces its own notification;
// any other failure produces exactly one error notification and ends the
// attempt in Failed. The controller never stays busy after Submit returns.
func (c *Controller) Submit(ctx context.Context, form chatbot.ProvisionRequest, files []intake.File) (bot *chatbot.Chatbot, err error) {
	c.mu.Lock()
	if c.state.Busy() {
		c.mu.Unlock()
		return nil, ErrAttemptInProgress
	}
	c.state = Uploading
	c.mu.Unlock()

	defer func() {
		if err != nil {
			c.set(Failed)
			c.deps.Notifier.Notify(notify.Notification{Level: notify.Error, Title: "Error", Message: err.Error()})
			logger.Warnf("Error creating chatbot: %v", err)
			return
		}
		c.set(Succeeded)
		c.deps.Notifier.Notify(notify.Notification{
			Level:   notify.Success,
			Title:   "Success!",
			Message: fmt.Sprintf("Chatbot %q has been created successfully.", form.Name),
		})
	}()

	caller, cerr := c.deps.Session.Caller(ctx)
	if cerr != nil || caller == nil || caller.ID == "" {
		if cerr != nil {
			logger.Debugf("caller lookup failed: %v", cerr)
		}
		return nil, ErrNotLoggedIn
	}

	accepted, _ := intake.Validate(files, func(r intake.Rejection) {
		c.deps.Notifier.Notify(notify.Notification{Level: notify.Error, Title: r.Title, Message: r.Message()})
	})

	paths, err := c.deps.Uploader.Upload(ctx, caller.ID, accepted)
	if err != nil {
		return nil, err
	}

	c.set(Provisioning)
	form.ResourceFiles = paths
	bot, err = c.deps.Provisioner.Provision(ctx, form)
	// refresh whatever the outcome, so a record left behind by a failed
	// patch shows up in the listing
	if c.deps.Directory != nil {
		if rerr := c.deps.Directory.Refresh(ctx); rerr != nil {
			logger.Warnf("directory refresh after provisioning failed: %v", rerr)
		}
	}
	if err != nil {
		return nil, err
	}
	return bot, nil
}
