package parser

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jp-address-parser/app/models"
	"github.com/jp-address-parser/internal/gazetteer"
	"github.com/jp-address-parser/internal/normalizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSplitter struct {
	mock.Mock
}

func (m *mockSplitter) Split(ctx context.Context, text string) (*gazetteer.Result, error) {
	args := m.Called(ctx, text)
	res, _ := args.Get(0).(*gazetteer.Result)
	return res, args.Error(1)
}

func newDictionaryParser(t *testing.T) *AddressParser {
	t.Helper()
	source, err := gazetteer.NewEmbeddedSource()
	require.NoError(t, err)
	splitter := gazetteer.NewDictionarySplitter(source, gazetteer.DefaultOptions(), zap.NewNop())
	p, err := NewAddressParser(splitter, normalizer.MustLoadRulesConfig(), zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestNewAddressParser_RequiresDependencies(t *testing.T) {
	_, err := NewAddressParser(nil, normalizer.MustLoadRulesConfig(), zap.NewNop())
	assert.Error(t, err)

	_, err = NewAddressParser(&mockSplitter{}, nil, zap.NewNop())
	assert.Error(t, err)

	rules := normalizer.MustLoadRulesConfig()
	broken := *rules
	broken.Patterns.Floor = "("
	_, err = NewAddressParser(&mockSplitter{}, &broken, zap.NewNop())
	assert.Error(t, err)
}

func TestAddressParser_EndToEnd(t *testing.T) {
	p := newDictionaryParser(t)

	tests := []struct {
		name  string
		input string
		want  models.AddressRecord
	}{
		{
			name:  "tokyo special ward with building and floor",
			input: "東京都中央区八重洲2-1-1 YANMAR TOKYO 12F",
			want: models.AddressRecord{
				Prefecture:   strPtr("東京都"),
				City:         strPtr("中央区"),
				Neighborhood: strPtr("八重洲二丁目"),
				Banch:        strPtr("1"),
				Go:           strPtr("1"),
				BuildingName: strPtr("YANMAR TOKYO"),
				FloorNumber:  strPtr("12F"),
			},
		},
		{
			name:  "designated city ward",
			input: "大阪府大阪市中央区久太郎町４丁目渡辺３号",
			want: models.AddressRecord{
				Prefecture:   strPtr("大阪府"),
				City:         strPtr("大阪市"),
				Ward:         strPtr("中央区"),
				Neighborhood: strPtr("久太郎町四丁目"),
				Banch:        strPtr("渡辺3号"),
			},
		},
		{
			name:  "county",
			input: "和歌山県西牟婁郡白浜町栄609-2",
			want: models.AddressRecord{
				Prefecture:   strPtr("和歌山県"),
				County:       strPtr("西牟婁郡"),
				City:         strPtr("白浜町"),
				Neighborhood: strPtr("栄"),
				Banch:        strPtr("609"),
				Go:           strPtr("2"),
			},
		},
		{
			name:  "postal code and harmonized chome",
			input: "〒116-0013 東京都荒川区西日暮里2丁目19-1号",
			want: models.AddressRecord{
				PostalCode:   strPtr("〒116-0013"),
				Prefecture:   strPtr("東京都"),
				City:         strPtr("荒川区"),
				Neighborhood: strPtr("西日暮里2丁目"),
				Banch:        strPtr("19"),
				Go:           strPtr("1"),
			},
		},
		{
			name:  "full-width postal code",
			input: "〒１１６００１３ 東京都荒川区西日暮里2丁目19-1号",
			want: models.AddressRecord{
				PostalCode:   strPtr("〒１１６００１３"),
				Prefecture:   strPtr("東京都"),
				City:         strPtr("荒川区"),
				Neighborhood: strPtr("西日暮里2丁目"),
				Banch:        strPtr("19"),
				Go:           strPtr("1"),
			},
		},
		{
			name:  "full-width floor",
			input: "東京都中央区八重洲2-1-1 YANMAR TOKYO １２Ｆ",
			want: models.AddressRecord{
				Prefecture:   strPtr("東京都"),
				City:         strPtr("中央区"),
				Neighborhood: strPtr("八重洲二丁目"),
				Banch:        strPtr("1"),
				Go:           strPtr("1"),
				BuildingName: strPtr("YANMAR TOKYO"),
				FloorNumber:  strPtr("１２Ｆ"),
			},
		},
		{
			name:  "short country marker",
			input: "日本 東京都台東区蔵前4丁目3-12",
			want: models.AddressRecord{
				Country:      strPtr("日本"),
				Prefecture:   strPtr("東京都"),
				City:         strPtr("台東区"),
				Neighborhood: strPtr("蔵前4丁目"),
				Banch:        strPtr("3"),
				Go:           strPtr("12"),
			},
		},
		{
			name:  "omitted oaza",
			input: "長野県長野市南長野県町477-1",
			want: models.AddressRecord{
				Prefecture:   strPtr("長野県"),
				City:         strPtr("長野市"),
				Neighborhood: strPtr("大字南長野"),
				Banch:        strPtr("県町477"),
				Go:           strPtr("1"),
			},
		},
		{
			name:  "nihonbashi is not a country",
			input: "東京都中央区日本橋1-1 日本",
			want: models.AddressRecord{
				Prefecture:   strPtr("東京都"),
				City:         strPtr("中央区"),
				Neighborhood: strPtr("日本橋一丁目"),
				Banch:        strPtr("1"),
				BuildingName: strPtr("日本"),
			},
		},
		{
			name:  "leading county glyph city",
			input: "日本国福島県郡山市朝日1丁目23-7",
			want: models.AddressRecord{
				Country:      strPtr("日本国"),
				Prefecture:   strPtr("福島県"),
				City:         strPtr("郡山市"),
				Neighborhood: strPtr("朝日1丁目"),
				Banch:        strPtr("23"),
				Go:           strPtr("7"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(context.Background(), tt.input)
			require.NoError(t, err)

			want := tt.want
			want.FullAddress = tt.input
			assert.Equal(t, want, *got)
			assert.Nil(t, got.RoomNumber)
			assert.False(t, got.County != nil && got.Ward != nil)
		})
	}
}

func TestAddressParser_PassesOnlyFirstTokenToSplitter(t *testing.T) {
	splitter := &mockSplitter{}
	splitter.On("Split", mock.Anything, "東京都中央区八重洲2-1-1").Return(&gazetteer.Result{
		Pref: "東京都", City: "中央区", Town: "八重洲二丁目", Addr: "1-1",
	}, nil).Once()

	p, err := NewAddressParser(splitter, normalizer.MustLoadRulesConfig(), zap.NewNop())
	require.NoError(t, err)

	raw := "郵便番号〒104-0028、日本国東京都中央区八重洲2-1-1 丸ビル 5階"
	got, err := p.Parse(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, raw, got.FullAddress)
	assert.Equal(t, strPtr("日本国"), got.Country)
	assert.Equal(t, strPtr("〒104-0028"), got.PostalCode)
	assert.Equal(t, strPtr("丸ビル"), got.BuildingName)
	assert.Equal(t, strPtr("5階"), got.FloorNumber)
	splitter.AssertExpectations(t)
}

func TestAddressParser_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty input", func(t *testing.T) {
		p := newDictionaryParser(t)
		_, err := p.Parse(ctx, " 　")
		assert.ErrorIs(t, err, ErrEmptyAddress)
	})

	t.Run("nothing left after country", func(t *testing.T) {
		p := newDictionaryParser(t)
		_, err := p.Parse(ctx, "日本国")
		assert.ErrorIs(t, err, gazetteer.ErrUnmatched)
	})

	t.Run("splitter failure is wrapped", func(t *testing.T) {
		splitter := &mockSplitter{}
		splitter.On("Split", mock.Anything, "どこか1-2").
			Return(nil, &gazetteer.UnmatchedError{Level: gazetteer.LevelPrefecture, Input: "どこか1-2"})
		p, err := NewAddressParser(splitter, normalizer.MustLoadRulesConfig(), zap.NewNop())
		require.NoError(t, err)

		_, err = p.Parse(ctx, "どこか1-2")
		require.Error(t, err)
		assert.True(t, errors.Is(err, gazetteer.ErrUnmatched))
		assert.Contains(t, err.Error(), "parser: split")
	})

	t.Run("cancelled context", func(t *testing.T) {
		p := newDictionaryParser(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := p.Parse(cctx, "東京都中央区八重洲2-1-1")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestAddressParser_ParseBatchKeepsInputOrder(t *testing.T) {
	splitter := gazetteer.SplitterFunc(func(_ context.Context, text string) (*gazetteer.Result, error) {
		if text == "bad" {
			return nil, fmt.Errorf("fake: %w", gazetteer.ErrUnmatched)
		}
		return &gazetteer.Result{Pref: "東京都", City: "中央区", Addr: text}, nil
	})
	p, err := NewAddressParser(splitter, normalizer.MustLoadRulesConfig(), zap.NewNop())
	require.NoError(t, err)

	lines := make([]string, 200)
	for i := range lines {
		if i%7 == 0 {
			lines[i] = "bad"
			continue
		}
		lines[i] = fmt.Sprintf("%d-%d", i, i+1)
	}

	results := p.ParseBatch(context.Background(), lines, 8)
	require.Len(t, results, len(lines))
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, lines[i], r.Line)
		if i%7 == 0 {
			assert.ErrorIs(t, r.Err, gazetteer.ErrUnmatched)
			assert.Nil(t, r.Record)
			continue
		}
		require.NoError(t, r.Err)
		assert.Equal(t, fmt.Sprint(i), models.Value(r.Record.Banch))
		assert.Equal(t, fmt.Sprint(i+1), models.Value(r.Record.Go))
	}

	summary := models.Summarize(results)
	assert.Equal(t, 200, summary.Total)
	assert.Equal(t, 29, summary.Failed)
	assert.Equal(t, 171, summary.Succeeded)
	assert.Equal(t, "bad", summary.Failures[0].Line)
}

func TestAddressParser_ParseBatchWithDictionary(t *testing.T) {
	p := newDictionaryParser(t)
	lines := []string{
		"東京都中央区八重洲2-1-1 YANMAR TOKYO 12F",
		"火星県オリンポス市1-1",
		"和歌山県西牟婁郡白浜町栄609-2",
		"",
	}

	results := p.ParseBatch(context.Background(), lines, 0)
	require.Len(t, results, 4)
	assert.Equal(t, models.StatusOK, results[0].Status())
	assert.Equal(t, models.StatusFailed, results[1].Status())
	assert.Equal(t, models.StatusOK, results[2].Status())
	assert.ErrorIs(t, results[3].Err, ErrEmptyAddress)
	assert.Equal(t, "白浜町", models.Value(results[2].Record.City))
}

func TestAddressParser_ParseBatchCancelled(t *testing.T) {
	p := newDictionaryParser(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := p.ParseBatch(ctx, []string{"東京都中央区八重洲2-1-1", "和歌山県西牟婁郡白浜町栄609-2"}, 2)
	require.Len(t, results, 2)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestAddressParser_RulesVersion(t *testing.T) {
	p := newDictionaryParser(t)
	assert.Equal(t, normalizer.MustLoadRulesConfig().Version, p.RulesVersion())
}
