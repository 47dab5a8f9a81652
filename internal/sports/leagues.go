package sports

func nba(name string, aliases ...string) Team {
	return Team{Name: name, Aliases: aliases}
}

var nbaTeams = []Team{
	nba("Atlanta Hawks", "hawks"),
	nba("Boston Celtics", "celtics"),
	nba("Brooklyn Nets", "nets"),
	nba("Charlotte Hornets", "hornets"),
	nba("Chicago Bulls", "bulls"),
	nba("Cleveland Cavaliers", "cavaliers", "cavs"),
	nba("Dallas Mavericks", "mavericks", "mavs"),
	nba("Denver Nuggets", "nuggets"),
	nba("Detroit Pistons", "pistons"),
	nba("Golden State Warriors", "warriors", "dubs"),
	nba("Houston Rockets", "rockets"),
	nba("Indiana Pacers", "pacers"),
	nba("Los Angeles Clippers", "clippers", "la clippers"),
	nba("Los Angeles Lakers", "lakers", "la lakers"),
	nba("Memphis Grizzlies", "grizzlies"),
	nba("Miami Heat", "heat"),
	nba("Milwaukee Bucks", "bucks"),
	nba("Minnesota Timberwolves", "timberwolves", "wolves"),
	nba("New Orleans Pelicans", "pelicans"),
	nba("New York Knicks", "knicks"),
	nba("Oklahoma City Thunder", "thunder", "okc"),
	nba("Orlando Magic", "orlando"),
	nba("Philadelphia 76ers", "76ers", "sixers"),
	nba("Phoenix Suns", "suns"),
	nba("Portland Trail Blazers", "trail blazers", "blazers"),
	nba("Sacramento Kings", "kings"),
	nba("San Antonio Spurs", "spurs"),
	nba("Toronto Raptors", "raptors"),
	nba("Utah Jazz", "jazz"),
	nba("Washington Wizards", "wizards"),
}

var mlsTeams = []Team{
	{Name: "Inter Miami", Aliases: []string{"inter miami cf"}},
	{Name: "LAFC", Aliases: []string{"los angeles fc"}},
	{Name: "LA Galaxy", Aliases: []string{"galaxy"}},
	{Name: "Atlanta United"},
	{Name: "Austin FC"},
	{Name: "Charlotte FC"},
	{Name: "Chicago Fire"},
	{Name: "Cincinnati", Aliases: []string{"fc cincinnati"}},
	{Name: "Colorado Rapids", Aliases: []string{"rapids"}},
	{Name: "Columbus Crew"},
	{Name: "D.C. United"},
	{Name: "FC Dallas"},
	{Name: "Houston Dynamo"},
	{Name: "Minnesota United"},
	{Name: "Montreal", Aliases: []string{"cf montreal"}},
	{Name: "Nashville SC"},
	{Name: "New England Revolution", Aliases: []string{"revolution", "revs"}},
	{Name: "New York City FC", Aliases: []string{"nycfc"}},
	{Name: "New York Red Bulls", Aliases: []string{"red bulls"}},
	{Name: "Orlando City"},
	{Name: "Philadelphia Union"},
	{Name: "Portland Timbers", Aliases: []string{"timbers"}},
	{Name: "Real Salt Lake", Aliases: []string{"rsl"}},
	{Name: "San Jose Earthquakes", Aliases: []string{"earthquakes"}},
	{Name: "Seattle Sounders", Aliases: []string{"sounders"}},
	{Name: "Sporting KC", Aliases: []string{"sporting kansas city"}},
	{Name: "St. Louis City", Aliases: []string{"st louis city sc"}},
	{Name: "Toronto FC"},
	{Name: "Vancouver Whitecaps", Aliases: []string{"whitecaps"}},
}

// DefaultLeagues is the set the daily report is generated for. European
// soccer leagues carry no roster, so any team name is accepted there.
func DefaultLeagues() []League {
	return []League{
		{Code: "NBA", Name: "NBA", Aliases: []string{"basketball"}, Teams: nbaTeams},
		{Code: "EPL", Name: "Premier League", Aliases: []string{"english premier league", "premiership"}},
		{Code: "LALIGA", Name: "La Liga", Aliases: []string{"laliga"}},
		{Code: "SERIEA", Name: "Serie A"},
		{Code: "LIGUE1", Name: "Ligue 1"},
		{Code: "BUNDESLIGA", Name: "Bundesliga"},
		{Code: "FACUP", Name: "FA Cup"},
		{Code: "MLS", Name: "MLS", Aliases: []string{"major league soccer"}, Teams: mlsTeams},
	}
}

// Default returns a catalog over DefaultLeagues.
func Default() *Catalog {
	return New(DefaultLeagues())
}
