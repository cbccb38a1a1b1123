package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/xraph/warden/command"
	"github.com/xraph/warden/reply"
)

// ErrResponderState is returned when a reply call is not valid in the
// responder's current state.
var ErrResponderState = errors.New("discord: invalid responder state")

// interactionClient is the subset of *discordgo.Session the responder uses.
type interactionClient interface {
	InteractionRespond(i *discordgo.Interaction, r *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, e *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionResponseDelete(i *discordgo.Interaction, options ...discordgo.RequestOption) error
	FollowupMessageCreate(i *discordgo.Interaction, wait bool, p *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ command.Responder = (*Responder)(nil)

// Responder answers one interaction and tracks what has been sent.
type Responder struct {
	client      interactionClient
	interaction *discordgo.Interaction

	mu    sync.Mutex
	state command.ResponderState
}

// NewResponder creates a responder for interaction.
func NewResponder(client interactionClient, interaction *discordgo.Interaction) *Responder {
	return &Responder{client: client, interaction: interaction}
}

func flags(ephemeral bool) discordgo.MessageFlags {
	if ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

// Reply sends the initial response.
func (r *Responder) Reply(ctx context.Context, msg reply.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != command.StateNone {
		return fmt.Errorf("discord: reply in state %s: %w", r.state, ErrResponderState)
	}

	err := r.client.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg.Content,
			Embeds:  Embeds(msg.Cards),
			Flags:   flags(msg.Ephemeral),
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: reply: %w", err)
	}
	r.state = command.StateReplied
	return nil
}

// Defer acknowledges the interaction so the reply can follow later.
func (r *Responder) Defer(ctx context.Context, ephemeral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != command.StateNone {
		return fmt.Errorf("discord: defer in state %s: %w", r.state, ErrResponderState)
	}

	err := r.client.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags(ephemeral)},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: defer: %w", err)
	}
	r.state = command.StateDeferred
	return nil
}

// Edit replaces the deferred or initial response. Ephemerality is fixed by
// the first response and cannot be changed here.
func (r *Responder) Edit(ctx context.Context, msg reply.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == command.StateNone {
		return fmt.Errorf("discord: edit before reply: %w", ErrResponderState)
	}

	content := msg.Content
	embeds := Embeds(msg.Cards)
	_, err := r.client.InteractionResponseEdit(r.interaction, &discordgo.WebhookEdit{
		Content: &content,
		Embeds:  &embeds,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: edit: %w", err)
	}
	r.state = command.StateReplied
	return nil
}

// FollowUp sends an additional message after the initial response.
func (r *Responder) FollowUp(ctx context.Context, msg reply.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == command.StateNone {
		return fmt.Errorf("discord: follow-up before reply: %w", ErrResponderState)
	}

	_, err := r.client.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{
		Content: msg.Content,
		Embeds:  Embeds(msg.Cards),
		Flags:   flags(msg.Ephemeral),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: follow-up: %w", err)
	}
	r.state = command.StateReplied
	return nil
}

// Delete removes the initial response.
func (r *Responder) Delete(ctx context.Context) error {
	if err := r.client.InteractionResponseDelete(r.interaction, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: delete reply: %w", err)
	}
	return nil
}

// State returns what has been sent so far.
func (r *Responder) State() command.ResponderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}
