package main

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/sandevgo/gavbot/internal/config"
	"github.com/sandevgo/gavbot/internal/core"
	"github.com/sandevgo/gavbot/internal/knowledge"
	"github.com/sandevgo/gavbot/internal/storage/sqlite"
	"github.com/sandevgo/gavbot/pkg/log"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo catalog and bootstrap the knowledge base",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()
		return runSeed(ctx)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		return err
	}
	appCfg := config.NewAppConfig(ctx)

	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		return err
	}
	defer db.Close()

	catalogRepo := sqlite.NewCatalogRepo(db)
	knowledgeRepo := sqlite.NewKnowledgeRepo(db)

	products := demoCatalog()
	if err := catalogRepo.Seed(ctx, products); err != nil {
		return err
	}

	engine, err := knowledge.NewEngine(ctx, catalogRepo, knowledgeRepo, knowledge.Config{
		MinSimilarity:        0.5,
		CatalogMinSimilarity: 0.4,
		MaxMatches:           3,
	})
	if err != nil {
		return err
	}
	if err := engine.Bootstrap(ctx, products); err != nil {
		return err
	}

	logger.Info().Int("products", len(products)).Msg("catalog seeded")
	return nil
}

func demoCatalog() []core.Product {
	d := func(s string) decimal.Decimal {
		v, err := decimal.NewFromString(s)
		if err != nil {
			panic(err)
		}
		return v
	}

	return []core.Product{
		{
			Code: "P001", Description: "Cerveja Brahma Lata 350ml",
			Category: "Bebidas", Brand: "Brahma", Unit: "un",
			RetailPrice: d("4.50"), WholesalePrice: d("3.80"), WholesaleMinQty: d("12"),
			Stock: d("480"), SalesCount: 920,
			Synonyms: []string{"brahma", "brahma lata", "breja"},
		},
		{
			Code: "P002", Description: "Cerveja Skol Lata 350ml",
			Category: "Bebidas", Brand: "Skol", Unit: "un",
			RetailPrice: d("4.20"), WholesalePrice: d("3.50"), WholesaleMinQty: d("12"),
			Stock: d("360"), SalesCount: 780,
			Synonyms: []string{"skol", "skol lata"},
		},
		{
			Code: "P003", Description: "Cerveja Heineken Long Neck 330ml",
			Category: "Bebidas", Brand: "Heineken", Unit: "un",
			RetailPrice: d("7.90"), WholesalePrice: d("6.90"), WholesaleMinQty: d("24"),
			Stock: d("240"), SalesCount: 410,
			Synonyms: []string{"heineken", "long neck"},
		},
		{
			Code: "P004", Description: "Refrigerante Coca-Cola 2L",
			Category: "Bebidas", Brand: "Coca-Cola", Unit: "un",
			RetailPrice: d("9.90"), WholesalePrice: d("8.50"), WholesaleMinQty: d("6"),
			Stock: d("200"), SalesCount: 650,
			Synonyms: []string{"coca", "coca cola", "refri"},
		},
		{
			Code: "P005", Description: "Água Mineral sem Gás 500ml",
			Category: "Bebidas", Brand: "Crystal", Unit: "un",
			RetailPrice: d("2.00"), WholesalePrice: d("1.50"), WholesaleMinQty: d("12"),
			Stock: d("600"), SalesCount: 540,
			Synonyms: []string{"agua", "agua mineral"},
		},
		{
			Code: "P006", Description: "Sabão em Pó Omo 1,6kg",
			Category: "Limpeza", Brand: "Omo", Unit: "un",
			RetailPrice: d("24.90"), WholesalePrice: d("21.90"), WholesaleMinQty: d("6"),
			Stock: d("90"), SalesCount: 310,
			Synonyms: []string{"omo", "sabao", "sabao em po"},
		},
		{
			Code: "P007", Description: "Detergente Ypê Neutro 500ml",
			Category: "Limpeza", Brand: "Ypê", Unit: "un",
			RetailPrice: d("2.80"), WholesalePrice: d("2.30"), WholesaleMinQty: d("12"),
			Stock: d("300"), SalesCount: 480,
			Synonyms: []string{"ype", "detergente"},
		},
		{
			Code: "P008", Description: "Arroz Branco Tipo 1 5kg",
			Category: "Mercearia", Brand: "Tio João", Unit: "un",
			RetailPrice: d("27.90"), WholesalePrice: d("24.90"), WholesaleMinQty: d("10"),
			Stock: d("150"), SalesCount: 590,
			Synonyms: []string{"arroz", "arroz 5kg"},
		},
		{
			Code: "P009", Description: "Feijão Carioca 1kg",
			Category: "Mercearia", Brand: "Camil", Unit: "un",
			RetailPrice: d("8.90"), WholesalePrice: d("7.50"), WholesaleMinQty: d("10"),
			Stock: d("180"), SalesCount: 520,
			Synonyms: []string{"feijao"},
		},
		{
			Code: "P010", Description: "Óleo de Soja 900ml",
			Category: "Mercearia", Brand: "Liza", Unit: "un",
			RetailPrice: d("7.50"), WholesalePrice: d("6.40"), WholesaleMinQty: d("20"),
			Stock: d("240"), SalesCount: 450,
			Synonyms: []string{"oleo", "oleo de soja"},
		},
	}
}
