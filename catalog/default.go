package catalog

// Default is a small built-in syllabus used when no file is configured.
func Default() *Catalog {
	return New(Syllabus{Groups: []Group{
		{
			Title: "Carreteras",
			Topics: []Entry{
				{Title: "Ley 9/1991, de 8 de mayo, de Carreteras de Canarias", Filename: "Ley 9-1991 Carreteras de Canarias.pdf"},
				{Title: "Reglamento de Carreteras de Canarias", Filename: "Decreto 131-1995 Reglamento de Carreteras.pdf"},
				{Title: "Firmes y pavimentos: Norma 6.1-IC", Filename: "Norma 6.1-IC Secciones de firme.pdf"},
			},
		},
		{
			Title: "Costas y Aguas",
			Topics: []Entry{
				{Title: "Ley 22/1988, de Costas", Filename: "Ley 22-1988 Costas.pdf"},
				{Title: "Ley 12/1990, de Aguas de Canarias", Filename: "Ley 12-1990 Aguas.pdf"},
			},
		},
		{
			Title: "Expropiación",
			Topics: []Entry{
				{Title: "Ley de Expropiación Forzosa", Filename: "Ley de Expropiacion Forzosa.pdf"},
			},
		},
	}})
}
