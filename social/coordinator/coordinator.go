// Package coordinator ties the three directories together. Cross-cutting
// side effects, like bootstrapping presence subscriptions when a
// friendship forms, live here so the directories stay decoupled from
// each other.
package coordinator

import (
	"go.uber.org/zap"

	"github.com/emberforge/socialcore/social/friends"
	"github.com/emberforge/socialcore/social/party"
	"github.com/emberforge/socialcore/social/presence"
)

type Coordinator struct {
	Parties  *party.Registry
	Presence *presence.Directory
	Friends  *friends.Graph
	logger   *zap.Logger
}

func New(parties *party.Registry, dir *presence.Directory, graph *friends.Graph, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		Parties:  parties,
		Presence: dir,
		Friends:  graph,
		logger:   logger,
	}
}

// SendFriendRequest forwards to the graph. When a request crossing the
// other way makes both sides friends immediately, the pair starts
// watching each other's presence right away.
func (c *Coordinator) SendFriendRequest(fromID, toID, message string) (*friends.Request, error) {
	req, err := c.Friends.SendFriendRequest(fromID, toID, message)
	if err != nil {
		return nil, err
	}
	if req.Status == friends.RequestAccepted {
		c.subscribePair(req.FromAccountID, req.ToAccountID)
	}
	return req, nil
}

// RespondFriendRequest forwards to the graph and, on acceptance, grants
// the new friends reciprocal presence subscriptions.
func (c *Coordinator) RespondFriendRequest(requestID, responderID string, resp friends.Response) (*friends.Request, error) {
	req, err := c.Friends.RespondFriendRequest(requestID, responderID, resp)
	if err != nil {
		return nil, err
	}
	if req.Status == friends.RequestAccepted {
		c.subscribePair(req.FromAccountID, req.ToAccountID)
	}
	return req, nil
}

// RemoveFriend severs the friendship and the presence subscriptions
// that came with it.
func (c *Coordinator) RemoveFriend(aID, bID string) error {
	if err := c.Friends.RemoveFriend(aID, bID); err != nil {
		return err
	}
	c.unsubscribePair(aID, bID)
	return nil
}

// BlockUser blocks the target and tears down the pair's presence
// subscriptions along with whatever the graph severed.
func (c *Coordinator) BlockUser(accountID, targetID string) error {
	if err := c.Friends.BlockUser(accountID, targetID); err != nil {
		return err
	}
	c.unsubscribePair(accountID, targetID)
	return nil
}

// HandleDisconnect is called by the connection layer when an account's
// last session closes. Presence goes offline and its subscriber-side
// edges are cleared; party membership deliberately survives so the
// account can reconnect into its party.
func (c *Coordinator) HandleDisconnect(accountID string) {
	c.Presence.OnDisconnect(accountID)
	c.logger.Debug("account disconnected", zap.String("account_id", accountID))
}

// HandleConnect is called when an account's first session opens.
// Friends are re-subscribed so presence fan-out resumes after the
// disconnect teardown.
func (c *Coordinator) HandleConnect(accountID string) {
	list := c.Friends.Friends(accountID)
	if len(list) > 0 {
		c.Presence.Subscribe(accountID, list...)
	}
	if _, err := c.Presence.SetPresence(accountID, presence.StatusOnline, "", nil); err != nil {
		c.logger.Warn("set presence on connect", zap.Error(err),
			zap.String("account_id", accountID))
	}
}

func (c *Coordinator) subscribePair(aID, bID string) {
	c.Presence.Subscribe(aID, bID)
	c.Presence.Subscribe(bID, aID)
}

func (c *Coordinator) unsubscribePair(aID, bID string) {
	c.Presence.Unsubscribe(aID, bID)
	c.Presence.Unsubscribe(bID, aID)
}
