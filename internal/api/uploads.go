/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"errors"
	"fmt"

	"mojgrad-go/internal/apperror"
	"mojgrad-go/internal/models"
	"mojgrad-go/internal/storage"

	"go.uber.org/zap"
)

// UploadImage stores a problem or profile photo and returns its public URL
func (s *Service) UploadImage(ctx context.Context, userId, filename, folder string, data []byte) (*models.UploadResult, error) {
	if err := requireCaller(userId); err != nil {
		return nil, err
	}
	if s.uploader == nil {
		return nil, apperror.Unavailable("Otpremanje slika nije podešeno")
	}
	if folder == "" {
		folder = storage.DefaultFolder
	}

	result, err := s.uploader.Upload(ctx, filename, folder, data)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrEmptyFile):
			return nil, apperror.ValidationFailed("file", "Fajl je prazan")
		case errors.Is(err, storage.ErrFileTooLarge):
			return nil, apperror.ValidationFailed("file", "Slika ne sme biti veća od 5MB")
		case errors.Is(err, storage.ErrUnsupportedType):
			return nil, apperror.ValidationFailed("file", "Dozvoljene su samo JPG i PNG slike")
		case errors.Is(err, storage.ErrInvalidKey):
			return nil, apperror.ValidationFailed("folder", "Neispravan folder")
		}
		zap.L().Error("Image upload failed",
			zap.String("user_id", userId),
			zap.String("filename", filename),
			zap.Error(err))
		return nil, fmt.Errorf("failed to upload image")
	}

	zap.L().Info("Image uploaded for user",
		zap.String("user_id", userId),
		zap.String("key", result.Key))

	return result, nil
}
