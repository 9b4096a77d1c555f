package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prepmic/internal/domain"
	"prepmic/internal/ports"
)

// ErrStreamActive is returned when a second answer stream is opened before
// the first one closed.
var ErrStreamActive = errors.New("an answer stream is already open")

// BeginAnswerStream opens a server-side transcription stream for the current
// recording attempt. Every result coming back is tagged with the recording
// active NOW, at stream start, never with whatever question is active when
// the result eventually arrives.
func (c *InterviewController) BeginAnswerStream(ctx context.Context, sessionID string) error {
	vs, err := c.voice(sessionID)
	if err != nil {
		return err
	}

	recording := vs.coordinator.Recording()
	if recording == nil {
		return ErrNotRecording
	}
	tag := recording.Tag()

	// Claim the stream slot before dialing the provider so a concurrent
	// begin is rejected instead of overwriting the first stream.
	vs.mu.Lock()
	if vs.stream != nil || vs.streamStarting {
		vs.mu.Unlock()
		return ErrStreamActive
	}
	vs.streamStarting = true
	vs.mu.Unlock()

	streamCfg := c.cfg.Streaming
	if session, err := c.store.Get(sessionID); err == nil {
		streamCfg.Language = session.Language
	}

	stream, err := c.transcriber.StartStreaming(ctx, streamCfg)
	if err != nil {
		vs.mu.Lock()
		vs.streamStarting = false
		vs.mu.Unlock()
		c.events.SessionError(sessionID, domain.ErrorCodeTranscription, err.Error())
		return fmt.Errorf("failed to start transcription stream: %w", err)
	}

	done := make(chan struct{})
	vs.mu.Lock()
	vs.stream = stream
	vs.streamDone = done
	vs.streamStarting = false
	vs.mu.Unlock()

	go c.consumeTranscripts(sessionID, stream, tag, done)
	return nil
}

// PushAudio forwards one captured audio chunk to the open answer stream.
func (c *InterviewController) PushAudio(sessionID string, chunk []byte) error {
	vs, err := c.voice(sessionID)
	if err != nil {
		return err
	}

	vs.mu.Lock()
	stream := vs.stream
	vs.mu.Unlock()
	if stream == nil {
		return ErrNotRecording
	}

	if err := stream.SendAudio(chunk); err != nil {
		c.events.SessionError(sessionID, domain.ErrorCodeTranscription, err.Error())
		return err
	}
	return nil
}

// EndAnswerStream stops sending audio and drains the remaining transcription
// results. A provider failure here is retryable and leaves session state
// untouched.
func (c *InterviewController) EndAnswerStream(sessionID string) error {
	vs, err := c.voice(sessionID)
	if err != nil {
		return err
	}

	vs.mu.Lock()
	stream := vs.stream
	done := vs.streamDone
	vs.stream = nil
	vs.streamDone = nil
	vs.mu.Unlock()
	if stream == nil {
		return nil
	}

	_ = stream.CloseSend()
	streamErr := waitForStream(stream, 4*time.Second)
	if done != nil {
		<-done
	}
	if streamErr != nil {
		c.events.SessionError(sessionID, domain.ErrorCodeTranscription, streamErr.Error())
		return fmt.Errorf("transcription stream failed: %w", streamErr)
	}
	return nil
}

// consumeTranscripts routes stream results through the staleness guard. A
// session that disappears mid-stream just stops consumption; pending results
// are dropped at the guard, never awaited.
func (c *InterviewController) consumeTranscripts(sessionID string, stream ports.StreamingSession, tag int, done chan struct{}) {
	defer close(done)

	for event := range stream.Events() {
		if _, err := c.AcceptTranscript(sessionID, event, tag); err != nil {
			return
		}
	}
}

func (c *InterviewController) closeStream(vs *voiceSession) {
	vs.mu.Lock()
	stream := vs.stream
	done := vs.streamDone
	vs.stream = nil
	vs.streamDone = nil
	vs.mu.Unlock()
	if stream == nil {
		return
	}
	_ = stream.Close()
	if done != nil {
		<-done
	}
}

func waitForStream(stream ports.StreamingSession, timeout time.Duration) error {
	finished := make(chan error, 1)
	go func() {
		finished <- stream.Wait()
	}()

	select {
	case err := <-finished:
		return err
	case <-time.After(timeout):
		_ = stream.Close()
		return <-finished
	}
}
