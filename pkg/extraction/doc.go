// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package extraction turns discovered source files into per-file kernel
// artifacts by asking a model to isolate every __global__ function.
//
// An Extractor re-checks each file for the marker, renders the task prompt,
// calls the Generator, strips an optional Markdown fence from the reply and
// decodes it into an artifact.ExtractionResult written atomically to the
// output directory. Files are processed by a bounded worker pool; a failed
// file is recorded in BatchResult.Failures and never stops the batch.
package extraction
