// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface used by the clustering and
// memory video workflows.
//
// Commands exchange values through the cor.Context. The keys below are the
// named parameters shared between commands; everything else flows through
// cor.CtxIn and cor.CtxOut.
package commands

import (
	"errors"
	"fmt"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
)

const (
	ParamUserID          = "__user_id__"
	ParamPhotoBatch      = "__photo_batch__"
	ParamClusters        = "__clusters__"
	ParamCommitResult    = "__commit_result__"
	ParamVideoRequest    = "__video_request__"
	ParamCluster         = "__cluster__"
	ParamNarrationObject = "__narration_object__"
	ParamNarrationAudio  = "__narration_audio__"
	ParamAssets          = "__staged_assets__"
	ParamNarration       = "__narration_script__"
	ParamArtifact        = "__artifact__"
	ParamVideoURL        = "__video_url__"
)

var ErrInvalidMessage = errors.New("invalid message")

// payload accepts the raw message forms delivered by Pub/Sub and HTTP.
func payload(in interface{}) ([]byte, error) {
	switch v := in.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unsupported payload type %T", ErrInvalidMessage, in)
	}
}

// userID reads ParamUserID, empty when missing.
func userID(context cor.Context) string {
	id, _ := context.Get(ParamUserID).(string)
	return id
}
