// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package zlow

// TransposeSplit scatters the fixed-width records of src into
// byte planes: planes[i][j] receives byte i of record j. There
// must be one plane per byte of record width, each of length
// len(src)/width.
func TransposeSplit(width int, src []byte, planes [][]byte) {
	n := len(src) / width
	for j := 0; j < n; j++ {
		rec := src[j*width : (j+1)*width]
		for i := 0; i < width; i++ {
			planes[i][j] = rec[i]
		}
	}
}

// TransposeJoin gathers byte planes back into fixed-width
// records, inverting TransposeSplit.
func TransposeJoin(planes [][]byte, dst []byte) {
	width := len(planes)
	n := len(dst) / width
	for j := 0; j < n; j++ {
		rec := dst[j*width : (j+1)*width]
		for i := 0; i < width; i++ {
			rec[i] = planes[i][j]
		}
	}
}
